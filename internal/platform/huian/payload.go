package huian

import (
	"encoding/json"

	"github.com/tinywideclouds/go-huian-notify-service/pkg/device"
	"github.com/tinywideclouds/go-huian-notify-service/pkg/dispatch"
)

const (
	DefaultBadge = "+1"
	DefaultSound = "default"
)

// pushRequest mirrors the gateway's /v3/push body.
type pushRequest struct {
	Platform     []string          `json:"platform"`
	Audience     audience          `json:"audience"`
	Notification notificationBlock `json:"notification"`
	Options      pushOptions       `json:"options"`
}

type audience struct {
	RegistrationID []string `json:"registration_id"`
}

type notificationBlock struct {
	IOS iosNotification `json:"ios"`
}

type iosNotification struct {
	Alert  any            `json:"alert"` // alertBody, or a plain string for the probe
	Badge  string         `json:"badge"`
	Sound  string         `json:"sound"`
	Extras map[string]any `json:"extras,omitempty"`
}

type alertBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushOptions struct {
	APNSProduction bool `json:"apns_production"`
}

type pushResponse struct {
	MsgID json.RawMessage `json:"msg_id"`
}

func newPushRequest(rec device.Record, n dispatch.Notification) pushRequest {
	badge := n.Badge
	if badge == "" {
		badge = DefaultBadge
	}
	sound := n.Sound
	if sound == "" {
		sound = DefaultSound
	}

	return pushRequest{
		Platform: []string{"ios"},
		Audience: audience{RegistrationID: []string{rec.RegistrationID}},
		Notification: notificationBlock{
			IOS: iosNotification{
				Alert:  alertBody{Title: n.Title, Body: n.Body},
				Badge:  badge,
				Sound:  sound,
				Extras: n.Extras,
			},
		},
		Options: pushOptions{APNSProduction: rec.Production},
	}
}

// parseMessageID pulls msg_id out of a 200 response. The gateway sends it
// as a string but a bare number is accepted too; anything else yields "".
func parseMessageID(body []byte) string {
	var resp pushResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.MsgID) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(resp.MsgID, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(resp.MsgID, &n); err == nil {
		return n.String()
	}
	return ""
}
