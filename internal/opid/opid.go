// Package opid resolves the request-scoped operation id threaded into
// every emitted event, every scheduled task's payload, and every log
// record for one command.
package opid

import (
	"github.com/sirupsen/logrus"

	"github.com/voidloop/connectionhub/internal/ids"
)

// FromIngress adopts raw as the operation id if it parses; otherwise it
// mints a fresh time-ordered one and logs a warning, per §4.8. An empty
// raw is treated the same as a malformed one (ingress omitted it).
func FromIngress(log *logrus.Logger, raw string) ids.OperationId {
	if raw != "" {
		if parsed, err := ids.ParseOperationId(raw); err == nil {
			return parsed
		}
	}
	log.WithField("raw_operation_id", raw).Warn("opid: missing or malformed operation id, minting a fresh one")
	minted := ids.NewOperationId()
	log.WithField("operation_id", minted.String()).Debug("opid: minted fresh operation id")
	return minted
}

// Fields returns the logrus fields every log line for this operation
// should carry.
func Fields(operationID ids.OperationId) logrus.Fields {
	return logrus.Fields{"operation_id": operationID.String()}
}
