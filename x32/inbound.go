package x32

import (
	"regexp"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/osc"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/utils"
	"github.com/sirupsen/logrus"
)

// configLineRE matches the reply to a node query for an entity config, e.g.
// `/ch/01/config "Kick In" 1 RD 1`.
var configLineRE = regexp.MustCompile(`^(/\S+)/config\s+"([^"]*)"\s+\S+\s+(\S+)`)

// handleMessage classifies an inbound message of session s and updates the
// cache. Listeners fire only for values that actually changed. Messages of a
// session that is no longer current are dropped.
func (d *Driver) handleMessage(s *session, msg osc.Message) {
	switch msg.Command {
	case "node":
		d.handleNode(s, msg)
		return
	case meters1, meters2:
		d.handleMeters(s, msg)
		return
	}

	t, ok := d.routes.target(msg.Command)
	if !ok {
		d.log.WithField("msg", msg).Trace("Ignoring unmapped message")
		return
	}

	switch t.field {
	case fieldName:
		if name, ok := msg.Str(0); ok {
			d.updateEntity(s, t.id, &name, nil)
		}
	case fieldColor:
		index, ok := msg.Int(0)
		if !ok {
			return
		}
		color, ok := colorFromIndex(index)
		if !ok {
			d.log.WithFields(logrus.Fields{"id": t.id, "index": index}).Warn("Unknown color index")
			return
		}
		d.updateEntity(s, t.id, nil, &color)
	case fieldLevel:
		level, ok := msg.Float(0)
		if !ok {
			return
		}
		// NaN maps to 0, keeping the change gate intact
		if d.writeLevel(s, t.send, utils.Clamp(float64(level), 0, 1)) {
			d.registry.FireLevelChange(t.send.mix, t.send.input)
		}
	case fieldMute:
		if v, ok := msg.Int(0); ok && d.writeMute(s, t.send, v != 0) {
			d.registry.FireMuteChange(t.send.mix, t.send.input)
		}
	}
}

func (d *Driver) handleNode(s *session, msg osc.Message) {
	line, ok := msg.Str(0)
	if !ok {
		return
	}
	m := configLineRE.FindStringSubmatch(line)
	if m == nil {
		return
	}
	id, ok := d.routes.entity(m[1])
	if !ok {
		return
	}
	name := m[2]
	color, ok := colorFromCode(m[3])
	if !ok {
		d.log.WithFields(logrus.Fields{"id": id, "code": m[3]}).Warn("Unknown color code")
		d.updateEntity(s, id, &name, nil)
		return
	}
	d.updateEntity(s, id, &name, &color)
}

func (d *Driver) handleMeters(s *session, msg osc.Message) {
	blob, ok := msg.Blob(0)
	if !ok {
		return
	}
	values := decodeMeters(msg.Command, blob)

	d.mu.Lock()
	if !d.ownsLocked(s) {
		d.mu.Unlock()
		return
	}
	for id, v := range values {
		if old, ok := d.meters[id]; !ok || old != v {
			d.meters[id] = v
			d.metersDirty = true
		}
	}
	fire := msg.Command == meters2 && d.metersDirty
	if fire {
		d.metersDirty = false
	}
	d.mu.Unlock()

	if fire {
		d.registry.FireMetersChange()
	}
}

// updateEntity writes the given name and color of an entity and notifies the
// mix and input listeners if anything changed.
func (d *Driver) updateEntity(s *session, id string, name, color *string) {
	d.mu.Lock()
	if !d.ownsLocked(s) {
		d.mu.Unlock()
		return
	}
	changed := false
	if name != nil {
		if old, ok := d.names[id]; !ok || old != *name {
			d.names[id] = *name
			changed = true
		}
	}
	if color != nil {
		if old, ok := d.colors[id]; !ok || old != *color {
			d.colors[id] = *color
			changed = true
		}
	}
	d.mu.Unlock()

	if !changed {
		return
	}
	if d.console.HasMix(id) {
		d.registry.FireMixChange(id)
	}
	if d.console.HasInput(id) {
		d.registry.FireInputChange(id)
	}
}

// ownsLocked reports whether s may write to the cache; nil stands for local
// writes. Sessions are swapped out before the cache is reset.
func (d *Driver) ownsLocked(s *session) bool {
	return s == nil || d.session.Load() == s
}

func (d *Driver) writeLevel(s *session, snd send, level float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ownsLocked(s) {
		return false
	}
	if old, ok := d.levels[snd]; ok && old == level {
		return false
	}
	d.levels[snd] = level
	return true
}

func (d *Driver) writeMute(s *session, snd send, mute bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ownsLocked(s) {
		return false
	}
	if old, ok := d.mutes[snd]; ok && old == mute {
		return false
	}
	d.mutes[snd] = mute
	return true
}
