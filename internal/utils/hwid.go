package utils

import (
	"log/slog"

	"github.com/denisbrodbeck/machineid"
)

const hwidAppID = "cloudstore"

// HWID is an app-scoped hash of the machine id, sent as the device id header.
var HWID = resolveHWID()

func resolveHWID() string {
	id, err := machineid.ProtectedID(hwidAppID)
	if err != nil {
		slog.Debug("machine id unavailable", "error", err)
		return "unknown"
	}
	return id
}
