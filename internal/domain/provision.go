package domain

import "time"

// DefaultProfileName is the connection profile the agent manages when a
// request does not name one explicitly. Profiles created under any other
// name are owned by whoever configured them and are never touched.
const DefaultProfileName = "ListenerManagedWifi"

// ProvisionRequest is a single parsed wire request.
type ProvisionRequest struct {
	SSID        string
	Password    string
	ProfileName string
}

// DeviceState is the NetworkManager-reported state of the wireless interface.
type DeviceState string

const (
	StateUnknown      DeviceState = "unknown"
	StateDisconnected DeviceState = "disconnected"
	StateConnecting   DeviceState = "connecting"
	StateConnected    DeviceState = "connected"
	StateUnavailable  DeviceState = "unavailable"
	StateDeactivating DeviceState = "deactivating"
)

// LinkStatus is one observation of the wireless interface. It is recomputed
// on every poll tick and never persisted; a failed sub-query leaves the
// corresponding field at its zero/sentinel value for that tick.
type LinkStatus struct {
	DeviceState   DeviceState `json:"device_state"`
	ActiveProfile string      `json:"active_profile,omitempty"`
	ActiveSSID    string      `json:"active_ssid,omitempty"`
	IPAddress     string      `json:"ip_address,omitempty"`
}

// OutcomeCode identifies how a provisioning session ended.
type OutcomeCode string

const (
	OutcomeSuccess            OutcomeCode = "success"
	OutcomeBadPassword        OutcomeCode = "activation_bad_password"
	OutcomeActivationFailed   OutcomeCode = "activation_failed"
	OutcomeTimeout            OutcomeCode = "timeout"
	OutcomeProfileWriteFailed OutcomeCode = "profile_write_failed"
	OutcomeInvalidRequest     OutcomeCode = "invalid_request"
	OutcomeServerError        OutcomeCode = "server_error"
)

// Outcome is the terminal result of one provisioning session. Exactly one is
// produced per accepted connection and drives both the wire response and the
// report webhook.
type Outcome struct {
	Code      OutcomeCode `json:"code"`
	SSID      string      `json:"ssid,omitempty"`
	Profile   string      `json:"profile,omitempty"`
	IPAddress string      `json:"ip_address,omitempty"`
}

// SessionResult is the persisted/reported record of a provisioning session.
type SessionResult struct {
	SessionID  string      `json:"session_id"`
	AgentID    string      `json:"agent_id,omitempty"`
	Outcome    Outcome     `json:"outcome"`
	RemoteAddr string      `json:"remote_addr,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	Duration   string      `json:"duration"`
	LastStatus *LinkStatus `json:"last_status,omitempty"`
}
