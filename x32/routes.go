package x32

import (
	"regexp"

	"github.com/SimpleVolumeControl/SimpleVolumeControl/catalog"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/mixer"
	"github.com/SimpleVolumeControl/SimpleVolumeControl/osc"
)

type kind int

const (
	kindChannel kind = iota // ch, auxin and fxrtn
	kindBus
	kindMatrix
	kindMain
	kindMono
)

var entityRE = regexp.MustCompile(`^(ch|auxin|fxrtn|bus|mtx)(\d{2})$`)

// entityPrefix returns the address prefix of an entity, e.g. /ch/01 for ch01.
func entityPrefix(id string) (string, kind, bool) {
	switch id {
	case "main":
		return "/main/st", kindMain, true
	case "mono":
		return "/main/m", kindMono, true
	}

	m := entityRE.FindStringSubmatch(id)
	if m == nil {
		return "", 0, false
	}
	prefix := "/" + m[1] + "/" + m[2]
	switch m[1] {
	case "bus":
		return prefix, kindBus, true
	case "mtx":
		return prefix, kindMatrix, true
	default:
		return prefix, kindChannel, true
	}
}

// send identifies a level/mute pair: an input feeding a mix, or the mix
// itself when input is mixer.Self.
type send struct {
	mix, input string
}

type sendPaths struct {
	level, mute string
}

// sendAddresses returns the console addresses for the level and mute of a
// send. Channel-like inputs feed buses, main and mono; buses feed matrices.
func sendAddresses(mix, input string) (sendPaths, bool) {
	mixPrefix, mixKind, ok := entityPrefix(mix)
	if !ok || mixKind == kindChannel {
		return sendPaths{}, false
	}
	if input == mixer.Self {
		return sendPaths{mixPrefix + "/mix/fader", mixPrefix + "/mix/on"}, true
	}

	inPrefix, inKind, ok := entityPrefix(input)
	if !ok {
		return sendPaths{}, false
	}

	switch {
	case inKind == kindChannel && mixKind == kindBus:
		n := mix[len("bus"):]
		return sendPaths{inPrefix + "/mix/" + n + "/level", inPrefix + "/mix/" + n + "/on"}, true
	case inKind == kindChannel && mixKind == kindMain:
		// mute toggles the LR assign, mix/on would silence every send
		return sendPaths{inPrefix + "/mix/fader", inPrefix + "/mix/st"}, true
	case inKind == kindChannel && mixKind == kindMono:
		return sendPaths{inPrefix + "/mix/mlevel", inPrefix + "/mix/mono"}, true
	case inKind == kindBus && mixKind == kindMatrix:
		n := mix[len("mtx"):]
		return sendPaths{inPrefix + "/mix/" + n + "/level", inPrefix + "/mix/" + n + "/on"}, true
	}
	return sendPaths{}, false
}

type field int

const (
	fieldLevel field = iota
	fieldMute
	fieldName
	fieldColor
)

// target is what an inbound address refers to.
type target struct {
	field field
	send  send   // fieldLevel, fieldMute
	id    string // fieldName, fieldColor
}

// routes is the bidirectional mapping between catalog identifiers and console
// addresses for one console.
type routes struct {
	sends     map[send]sendPaths
	prefixes  map[string]string // entity id -> address prefix
	entities  map[string]string // address prefix -> entity id
	byAddress map[string]target
	polls     []osc.Message
}

func newRoutes(console catalog.Console) *routes {
	r := &routes{
		sends:     make(map[send]sendPaths),
		prefixes:  make(map[string]string),
		entities:  make(map[string]string),
		byAddress: make(map[string]target),
	}

	var ids []string
	for _, id := range append(console.Inputs(), console.Mixes()...) {
		if _, seen := r.prefixes[id]; seen {
			continue
		}
		prefix, _, ok := entityPrefix(id)
		if !ok {
			continue
		}
		ids = append(ids, id)
		r.prefixes[id] = prefix
		r.entities[prefix] = id
		r.byAddress[prefix+"/config/name"] = target{field: fieldName, id: id}
		r.byAddress[prefix+"/config/color"] = target{field: fieldColor, id: id}
	}

	var order []send
	for _, mix := range console.Mixes() {
		order = append(order, send{mix, mixer.Self})
		for _, input := range console.Inputs() {
			order = append(order, send{mix, input})
		}
	}
	for _, s := range order {
		paths, ok := sendAddresses(s.mix, s.input)
		if !ok {
			continue
		}
		r.sends[s] = paths
		r.byAddress[paths.level] = target{field: fieldLevel, send: s}
		r.byAddress[paths.mute] = target{field: fieldMute, send: s}
	}

	for _, id := range ids {
		r.polls = append(r.polls, osc.NewMessage("/node", r.prefixes[id][1:]+"/config"))
	}
	for _, s := range order {
		if paths, ok := r.sends[s]; ok {
			r.polls = append(r.polls, osc.NewMessage(paths.level), osc.NewMessage(paths.mute))
		}
	}

	return r
}

func (r *routes) send(mix, input string) (sendPaths, bool) {
	p, ok := r.sends[send{mix, input}]
	return p, ok
}

func (r *routes) target(address string) (target, bool) {
	t, ok := r.byAddress[address]
	return t, ok
}

func (r *routes) entity(prefix string) (string, bool) {
	id, ok := r.entities[prefix]
	return id, ok
}
