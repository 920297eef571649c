package lsl

import "fmt"

// EventKind identifies an event handler slot. The numeric value is the bit index
// in a state's declared-event bitfield and the row in its event jump table.
type EventKind uint8

const (
	EventStateEntry EventKind = iota
	EventStateExit
	EventTouchStart
	EventTouch
	EventTouchEnd
	EventCollisionStart
	EventCollision
	EventCollisionEnd
	EventLandCollisionStart
	EventLandCollision
	EventLandCollisionEnd
	EventTimer
	EventListen
	EventOnRez
	EventSensor
	EventNoSensor
	EventControl
	EventMoney
	EventEmail
	EventAtTarget
	EventNotAtTarget
	EventAtRotTarget
	EventNotAtRotTarget
	EventRunTimePermissions
	EventChanged
	EventAttach
	EventDataserver
	EventLinkMessage
	EventMovingStart
	EventMovingEnd
	EventObjectRez
	EventRemoteData
	EventHTTPResponse
	EventHTTPRequest

	NumEvents
)

// EventSignature is the fixed name and parameter list of an event handler.
type EventSignature struct {
	Name   string
	Params []Type
}

var eventTable = [NumEvents]EventSignature{
	EventStateEntry:         {"state_entry", nil},
	EventStateExit:          {"state_exit", nil},
	EventTouchStart:         {"touch_start", []Type{Integer}},
	EventTouch:              {"touch", []Type{Integer}},
	EventTouchEnd:           {"touch_end", []Type{Integer}},
	EventCollisionStart:     {"collision_start", []Type{Integer}},
	EventCollision:          {"collision", []Type{Integer}},
	EventCollisionEnd:       {"collision_end", []Type{Integer}},
	EventLandCollisionStart: {"land_collision_start", []Type{Vector}},
	EventLandCollision:      {"land_collision", []Type{Vector}},
	EventLandCollisionEnd:   {"land_collision_end", []Type{Vector}},
	EventTimer:              {"timer", nil},
	EventListen:             {"listen", []Type{Integer, String, Key, String}},
	EventOnRez:              {"on_rez", []Type{Integer}},
	EventSensor:             {"sensor", []Type{Integer}},
	EventNoSensor:           {"no_sensor", nil},
	EventControl:            {"control", []Type{Key, Integer, Integer}},
	EventMoney:              {"money", []Type{Key, Integer}},
	EventEmail:              {"email", []Type{String, String, String, String, Integer}},
	EventAtTarget:           {"at_target", []Type{Integer, Vector, Vector}},
	EventNotAtTarget:        {"not_at_target", nil},
	EventAtRotTarget:        {"at_rot_target", []Type{Integer, Quaternion, Quaternion}},
	EventNotAtRotTarget:     {"not_at_rot_target", nil},
	EventRunTimePermissions: {"run_time_permissions", []Type{Integer}},
	EventChanged:            {"changed", []Type{Integer}},
	EventAttach:             {"attach", []Type{Key}},
	EventDataserver:         {"dataserver", []Type{Key, String}},
	EventLinkMessage:        {"link_message", []Type{Integer, Integer, String, Key}},
	EventMovingStart:        {"moving_start", nil},
	EventMovingEnd:          {"moving_end", nil},
	EventObjectRez:          {"object_rez", []Type{Key}},
	EventRemoteData:         {"remote_data", []Type{Integer, Key, Key, String, Integer, String}},
	EventHTTPResponse:       {"http_response", []Type{Key, Integer, List, String}},
	EventHTTPRequest:        {"http_request", []Type{Key, String, String}},
}

// String returns the handler name, e.g. "touch_start".
func (k EventKind) String() string {
	if k < NumEvents {
		return eventTable[k].Name
	}
	return fmt.Sprintf("EventKind(%d)", k)
}

// Params returns the handler's fixed parameter types.
func (k EventKind) Params() []Type {
	if k < NumEvents {
		return eventTable[k].Params
	}
	return nil
}

// Mask returns the event's bit in a 64-bit declared-event bitfield.
func (k EventKind) Mask() uint64 {
	return 1 << uint64(k)
}

// EventByName resolves a handler name.
func EventByName(name string) (EventKind, bool) {
	for k := EventKind(0); k < NumEvents; k++ {
		if eventTable[k].Name == name {
			return k, true
		}
	}
	return 0, false
}
