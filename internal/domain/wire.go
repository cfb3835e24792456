package domain

import "strings"

// MaxPacketSize bounds both the request and the response. The protocol is a
// single unframed write/read per direction.
const MaxPacketSize = 1024

// Request command prefixes.
const (
	CmdSetWifi        = "SET_WIFI"
	CmdSetWifiProfile = "SET_WIFI_PROFILE"
)

// Wire responses. One of these literal strings is the entire response body;
// clients match on them, so they are part of the protocol contract.
const (
	RespSuccess            = "WiFi connection successful"
	RespBadPassword        = "Error: Activation failed - bad password?"
	RespActivationFailed   = "Error: Failed to activate NM connection command"
	RespTimeout            = "WiFi connection failed: Timeout or connection error"
	RespProfileWriteFailed = "Error: Failed to add/modify NM connection profile"
	RespInvalidRequest     = "Invalid packet format or value"
	RespServerError        = "Error processing command on server"
)

// ResponseForOutcome maps a session outcome to its wire response.
func ResponseForOutcome(code OutcomeCode) string {
	switch code {
	case OutcomeSuccess:
		return RespSuccess
	case OutcomeBadPassword:
		return RespBadPassword
	case OutcomeActivationFailed:
		return RespActivationFailed
	case OutcomeTimeout:
		return RespTimeout
	case OutcomeProfileWriteFailed:
		return RespProfileWriteFailed
	case OutcomeInvalidRequest:
		return RespInvalidRequest
	default:
		return RespServerError
	}
}

// ParseRequest parses one request line. Accepted shapes:
//
//	SET_WIFI,<ssid>,<password>
//	SET_WIFI_PROFILE,<ssid>,<password>,<profileName>
//
// The first form uses defaultProfile. SSID and password must be non-empty;
// an explicit profile name must be non-empty after trimming. Anything else
// is ErrInvalidRequest, and callers must not touch NetworkManager for such
// requests.
func ParseRequest(line, defaultProfile string) (ProvisionRequest, error) {
	switch {
	case strings.HasPrefix(line, CmdSetWifiProfile+","):
		parts := strings.SplitN(line, ",", 4)
		if len(parts) != 4 {
			return ProvisionRequest{}, ErrInvalidRequest{Detail: "SET_WIFI_PROFILE expects ssid, password and profile name"}
		}
		req := ProvisionRequest{
			SSID:        parts[1],
			Password:    parts[2],
			ProfileName: strings.TrimSpace(parts[3]),
		}
		if req.SSID == "" || req.Password == "" {
			return ProvisionRequest{}, ErrInvalidRequest{Detail: "ssid and password must be non-empty"}
		}
		if req.ProfileName == "" {
			return ProvisionRequest{}, ErrInvalidRequest{Detail: "profile name must be non-empty"}
		}
		return req, nil

	case strings.HasPrefix(line, CmdSetWifi+","):
		parts := strings.SplitN(line, ",", 3)
		if len(parts) != 3 {
			return ProvisionRequest{}, ErrInvalidRequest{Detail: "SET_WIFI expects ssid and password"}
		}
		req := ProvisionRequest{
			SSID:        parts[1],
			Password:    parts[2],
			ProfileName: defaultProfile,
		}
		if req.SSID == "" || req.Password == "" {
			return ProvisionRequest{}, ErrInvalidRequest{Detail: "ssid and password must be non-empty"}
		}
		return req, nil

	default:
		return ProvisionRequest{}, ErrInvalidRequest{Detail: "unknown command prefix"}
	}
}

// FormatRequest serializes a request into its wire line. The caller is
// responsible for ensuring no field contains the separator.
func (r ProvisionRequest) FormatRequest() string {
	if r.ProfileName != "" {
		return strings.Join([]string{CmdSetWifiProfile, r.SSID, r.Password, r.ProfileName}, ",")
	}
	return strings.Join([]string{CmdSetWifi, r.SSID, r.Password}, ",")
}
