package protocol

import "sort"

// Command is the value of the "cmd" field every envelope carries.
type Command string

// Stream is the topic group a command belongs to. Each stream has a post
// (device to server) and a sub (server to device) topic.
type Stream string

const (
	StreamHeart   Stream = "heart"
	StreamNTP     Stream = "ntp"
	StreamOTA     Stream = "ota"
	StreamConfig  Stream = "config"
	StreamEvent   Stream = "event"
	StreamService Stream = "service"
	StreamSystem  Stream = "system"
)

// Streams lists every stream in subscription order.
func Streams() []Stream {
	return []Stream{StreamHeart, StreamNTP, StreamOTA, StreamConfig, StreamEvent, StreamService, StreamSystem}
}

// Direction describes who starts an exchange and whether a reply is owed.
type Direction int

const (
	// Inbound messages flow device to server and get no reply.
	Inbound Direction = iota + 1
	// Outbound messages flow server to device and get no reply.
	Outbound
	// DeviceRequest exchanges start at the device; the server replies with the same msgId.
	DeviceRequest
	// ServerRequest exchanges start at the server; the device replies with the same msgId.
	ServerRequest
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	case DeviceRequest:
		return "device-request"
	case ServerRequest:
		return "server-request"
	default:
		return "invalid"
	}
}

const (
	CmdHeartbeat                Command = "HEARTBEAT"
	CmdNTP                      Command = "NTP"
	CmdNTPSync                  Command = "NTP_SYNC"
	CmdOTAInform                Command = "OTA_INFORM"
	CmdOTAProgress              Command = "OTA_PROGRESS"
	CmdOTAUpgrade               Command = "OTA_UPGRADE"
	CmdAttrGetService           Command = "ATTR_GET_SERVICE"
	CmdAttrSetService           Command = "ATTR_SET_SERVICE"
	CmdDeviceFeedingPlanService Command = "DEVICE_FEEDING_PLAN_SERVICE"
	CmdDeviceInfoService        Command = "DEVICE_INFO_SERVICE"
	CmdDevicePropertiesService  Command = "DEVICE_PROPERTIES_SERVICE"
	CmdFeedingPlanService       Command = "FEEDING_PLAN_SERVICE"
	CmdInitializeSDCardService  Command = "INITIALIZE_SD_CARD_SERVICE"
	CmdManualFeedingService     Command = "MANUAL_FEEDING_SERVICE"
	CmdTUTKContractService      Command = "TUTK_CONTRACT_SERVICE"
	CmdWifiChangeService        Command = "WIFI_CHANGE_SERVICE"
	CmdWifiReconnectService     Command = "WIFI_RECONNECT_SERVICE"
	CmdAttrPushEvent            Command = "ATTR_PUSH_EVENT"
	CmdDetectionEvent           Command = "DETECTION_EVENT"
	CmdDeviceStartEvent         Command = "DEVICE_START_EVENT"
	CmdErrorEvent               Command = "ERROR_EVENT"
	CmdGetFeedingPlanEvent      Command = "GET_FEEDING_PLAN_EVENT"
	CmdGrainOutputEvent         Command = "GRAIN_OUTPUT_EVENT"
	CmdGetConfig                Command = "GET_CONFIG"
	CmdServerConfigPush         Command = "SERVER_CONFIG_PUSH"
	CmdBinding                  Command = "BINDING"
	CmdDeviceReboot             Command = "DEVICE_REBOOT"
	CmdReset                    Command = "RESET"
	CmdRestore                  Command = "RESTORE"
	CmdUnbind                   Command = "UNBIND"
)

type commandInfo struct {
	stream    Stream
	direction Direction
}

var commandTable = map[Command]commandInfo{
	CmdHeartbeat: {StreamHeart, Inbound},

	// NTP is a device request without a correlation id.
	CmdNTP:     {StreamNTP, DeviceRequest},
	CmdNTPSync: {StreamNTP, ServerRequest},

	CmdOTAInform:   {StreamOTA, DeviceRequest},
	CmdOTAProgress: {StreamOTA, DeviceRequest},
	CmdOTAUpgrade:  {StreamOTA, ServerRequest},

	// The ATTR_GET_SERVICE reply arrives on the event stream.
	CmdAttrGetService:           {StreamService, ServerRequest},
	CmdAttrSetService:           {StreamService, ServerRequest},
	CmdDeviceFeedingPlanService: {StreamService, ServerRequest},
	CmdDeviceInfoService:        {StreamService, ServerRequest},
	CmdDevicePropertiesService:  {StreamService, ServerRequest},
	CmdFeedingPlanService:       {StreamService, ServerRequest},
	CmdInitializeSDCardService:  {StreamService, ServerRequest},
	CmdManualFeedingService:     {StreamService, ServerRequest},
	CmdTUTKContractService:      {StreamService, ServerRequest},
	CmdWifiChangeService:        {StreamService, ServerRequest},
	CmdWifiReconnectService:     {StreamService, ServerRequest},

	CmdAttrPushEvent:       {StreamEvent, DeviceRequest},
	CmdDetectionEvent:      {StreamEvent, Inbound},
	CmdDeviceStartEvent:    {StreamEvent, DeviceRequest},
	CmdErrorEvent:          {StreamEvent, DeviceRequest},
	CmdGetFeedingPlanEvent: {StreamEvent, DeviceRequest},
	CmdGrainOutputEvent:    {StreamEvent, DeviceRequest},

	CmdGetConfig:        {StreamConfig, ServerRequest},
	CmdServerConfigPush: {StreamConfig, ServerRequest},

	CmdBinding:      {StreamSystem, DeviceRequest},
	CmdDeviceReboot: {StreamSystem, ServerRequest},
	CmdReset:        {StreamSystem, Inbound},
	CmdRestore:      {StreamSystem, ServerRequest},
	CmdUnbind:       {StreamSystem, Outbound},
}

// LookupCommand resolves a wire tag to a known Command.
func LookupCommand(tag string) (Command, bool) {
	cmd := Command(tag)
	_, ok := commandTable[cmd]
	return cmd, ok
}

// Commands returns every known command, sorted by tag.
func Commands() []Command {
	out := make([]Command, 0, len(commandTable))
	for cmd := range commandTable {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether c is in the command table.
func (c Command) Known() bool {
	_, ok := commandTable[c]
	return ok
}

// Stream returns the topic group c is declared in, or "" for unknown commands.
func (c Command) Stream() Stream {
	return commandTable[c].stream
}

// Direction returns the exchange pattern of c, or 0 for unknown commands.
func (c Command) Direction() Direction {
	return commandTable[c].direction
}

// SendStream returns the stream whose sub topic carries server messages
// for c. The firmware listens for GET_FEEDING_PLAN_EVENT and
// GRAIN_OUTPUT_EVENT replies on the service topic.
func (c Command) SendStream() Stream {
	switch c {
	case CmdGetFeedingPlanEvent, CmdGrainOutputEvent:
		return StreamService
	default:
		return c.Stream()
	}
}
