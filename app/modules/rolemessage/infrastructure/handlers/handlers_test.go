package rolehandlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	roleevents "github.com/rolewarden/rolewarden/app/events"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	rolemetrics "github.com/rolewarden/rolewarden/internal/observability/metrics/rolemessage"
)

func testHandlers() *RoleHandlers {
	return NewRoleHandlers(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		&rolemetrics.NoOpMetrics{},
		noop.NewTracerProvider().Tracer("test"),
	)
}

func eventMessage(t *testing.T, payload any) *message.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), raw)
}

func TestHandleRolesApplied(t *testing.T) {
	h := testHandlers()
	msg := eventMessage(t, roleevents.RolesAppliedPayloadV1{
		GuildID:   "g1",
		MessageID: "m1",
		MemberID:  "u1",
		Added:     []sharedtypes.RoleID{"r-red"},
	})
	assert.NoError(t, h.HandleRolesApplied(msg))
}

func TestHandleActivationRejected(t *testing.T) {
	h := testHandlers()
	msg := eventMessage(t, roleevents.ActivationRejectedPayloadV1{
		GuildID:   "g1",
		MessageID: "m1",
		MemberID:  "u1",
		Reason:    "max_roles",
	})
	assert.NoError(t, h.HandleActivationRejected(msg))
}

func TestHandleReconcileCompleted(t *testing.T) {
	h := testHandlers()
	msg := eventMessage(t, roleevents.ReconcileCompletedPayloadV1{
		GuildID:         "g1",
		Operation:       "cleanup",
		MessagesChecked: 3,
		IssuesFound:     1,
		IssuesRepaired:  1,
	})
	assert.NoError(t, h.HandleReconcileCompleted(msg))
}

func TestHandlersRejectMalformedPayloads(t *testing.T) {
	h := testHandlers()
	bad := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	assert.Error(t, h.HandleRolesApplied(bad))
	assert.Error(t, h.HandleActivationRejected(bad))
	assert.Error(t, h.HandleReconcileCompleted(bad))
}
