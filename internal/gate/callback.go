package gate

import (
	"context"
	"errors"
	"net/url"

	"agegate/internal/signal"
	"agegate/pkg/logging"
)

// ErrNotCallback is returned by HandleCallback for a query that is not a
// provider redirect.
var ErrNotCallback = errors.New("request is not a verification callback")

// MessageFromQuery converts a provider redirect into a signal message. A
// region exemption is returned even without a state.
func MessageFromQuery(query url.Values, now func() int64) (signal.Message, error) {
	if !IsCallback(query) {
		return signal.Message{}, ErrNotCallback
	}

	msg := signal.Message{
		Code:      query.Get("code"),
		State:     query.Get("state"),
		Timestamp: now(),
	}
	if errCode := query.Get("error"); errCode != "" {
		msg.Code = ""
		msg.Error = errCode
		msg.ErrorDescription = query.Get("error_description")
		if msg.ErrorDescription == "" {
			msg.ErrorDescription = errCode
		}
	}

	if msg.State == "" && !IsRegionExempt(msg) {
		// Without a state the primary cannot correlate the message.
		return msg, &ProviderError{Code: msg.Error, Description: msg.ErrorDescription}
	}
	return msg, nil
}

// HandleCallback runs the secondary role: it relays the provider redirect in
// query to the primary through every available transport. A region exemption
// without a state is matched to the request pending in this process, or
// commits the session itself. opener may be nil
// when the primary can only be reached through shared storage.
func (g *Gate) HandleCallback(ctx context.Context, query url.Values, opener signal.Opener) (signal.Message, error) {
	if g.opts.Sender == nil {
		return signal.Message{}, errors.New("gate is not configured for the secondary role")
	}

	msg, err := MessageFromQuery(query, func() int64 { return g.opts.Now().UnixMilli() })
	if err != nil {
		return msg, err
	}

	if msg.State == "" {
		// A stateless region exemption: hand it to the attempt pending in
		// this process, or commit the session directly when there is none.
		pending, err := loadPending(ctx, g.opts.Pending, g.pendingKey)
		if err != nil {
			logging.Info("Gate", "Region exemption without a pending request, committing session")
			g.commit(ctx)
			return msg, nil
		}
		msg.State = pending.State
	}

	report, err := g.opts.Sender.Send(ctx, opener, msg)
	if err != nil {
		return msg, err
	}

	logging.Info("Gate", "Verification callback relayed (stored=%t mirrored=%t direct=%t)",
		report.Stored, report.Mirrored, report.Direct)
	return msg, nil
}
