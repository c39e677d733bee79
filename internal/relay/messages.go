package relay

// Session event types (server to client). Values match the wire format
// the dashboard listens on.
const (
	EventFeederInfo     = "feederInfo"
	EventFeederControl  = "feederControl"
	EventFeederSchedule = "feederSchedule"
)

// Session intent kinds (client to server).
const (
	IntentPlayFeeder     = "playFeeder"
	IntentAddSchedule    = "addSchedule"
	IntentDeleteSchedule = "deleteSchedule"
)

// ClientSource is the origin marker stamped on client-issued schedule
// removals. Client-added schedules carry the same marker, so the
// eventual bus echo reconciles against the matching tuple.
const ClientSource = "App"

// ControlMessage is the wire format on feeder/control.
type ControlMessage struct {
	Source  string `json:"source"`
	Action  string `json:"action"`
	Portion int    `json:"portion"`
}

// ScheduleMessage is the wire format on feeder/schedule.
type ScheduleMessage struct {
	Source  string `json:"source"`
	Action  string `json:"action"`
	Hour    int    `json:"hour"`
	Minute  int    `json:"minute"`
	Portion int    `json:"portion"`
}
