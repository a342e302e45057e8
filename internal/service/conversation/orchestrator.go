package conversation

import (
	"context"
	"log"
	"strings"

	"github.com/rayamira/concierge/backend/internal/model/persona"
	"github.com/rayamira/concierge/backend/internal/service/dispatch"
	"github.com/rayamira/concierge/backend/internal/service/voice"
)

// Orchestrator is the single transition authority for a submitted message.
// It appends turns, drives the answer-service calls and sequences playback;
// nothing else mutates State.
type Orchestrator struct {
	state   *State
	gateway dispatch.Gateway
	player  *voice.Player
}

// NewOrchestrator wires the conversation state to its collaborators.
func NewOrchestrator(state *State, gateway dispatch.Gateway, player *voice.Player) *Orchestrator {
	return &Orchestrator{state: state, gateway: gateway, player: player}
}

// Submit handles one message end to end: user turn, dispatch, reply turn,
// playback. Empty input and input while a request is pending are rejected
// with no turn appended. Dispatch and playback failures never propagate;
// they are pushed into the turn log and the pending flag is cleared on every
// exit path.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	sub, err := o.accept(text)
	if err != nil {
		return err
	}
	o.run(ctx, sub)
	return nil
}

// SubmitAsync accepts the message synchronously (so rejections surface to
// the caller) and completes dispatch and playback in the background. Used by
// the HTTP handler, which must not block for the length of a spoken reply.
func (o *Orchestrator) SubmitAsync(text string) error {
	sub, err := o.accept(text)
	if err != nil {
		return err
	}
	go o.run(context.Background(), sub)
	return nil
}

func (o *Orchestrator) accept(text string) (submission, error) {
	message := strings.TrimSpace(text)
	if message == "" {
		return submission{}, ErrEmptyMessage
	}
	return o.state.beginSubmission(message)
}

func (o *Orchestrator) run(ctx context.Context, sub submission) {
	defer o.state.endSubmission()

	var playback <-chan struct{}
	for i, target := range sub.targets {
		if i > 0 && playback != nil {
			// Dual-reply handoff: the second call is never issued before the
			// first utterance finished playing, so the voices cannot overlap.
			select {
			case <-playback:
			case <-ctx.Done():
				return
			}
		}

		reply, err := o.dispatchTo(ctx, target, sub)
		if err != nil {
			log.Printf("[orchestrator] dispatch failed persona=%s: %v", target.ID, err)
			o.state.appendFailureTurn(target)
			// A failed call produces no playback; a remaining persona is
			// still attempted.
			playback = nil
			continue
		}

		o.state.appendReplyTurn(target, reply)
		playback = o.player.Speak(ctx, target, reply.Text, reply.AudioBase64)
	}
}

func (o *Orchestrator) dispatchTo(ctx context.Context, target persona.Persona, sub submission) (dispatch.Reply, error) {
	req := dispatch.Request{
		Message:   sub.message,
		Character: target.ID,
		Mode:      string(sub.mode),
		History:   o.state.HistoryFor(target.ID, sub.userTurnID),
		Locale:    target.Language,
	}
	return o.gateway.Dispatch(ctx, req)
}
