package adb

import (
	"context"
	"strings"
)

// Device is one line of "adb devices -l".
type Device struct {
	Serial string `json:"serial"`
	State  string `json:"state"`
	Model  string `json:"model,omitempty"`
}

// Ready reports whether the device accepts commands.
func (d Device) Ready() bool {
	return d.State == "device"
}

// Devices lists attached devices and emulators. The serial filter is not
// applied.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.runner.Run(ctx, c.binary, "devices", "-l")
	if err != nil {
		return nil, commandError("devices", string(out), err)
	}
	return parseDevices(string(out)), nil
}

func parseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		// <serial> <state> <info...>
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		dev := Device{Serial: parts[0], State: parts[1]}
		for _, p := range parts[2:] {
			if model, ok := strings.CutPrefix(p, "model:"); ok {
				dev.Model = model
				break
			}
		}
		devices = append(devices, dev)
	}
	return devices
}
