package routing

import (
	"context"

	"switchboard/pkg/logger"
	"switchboard/pkg/metrics"
)

// State is a position in the inbound call flow. The provider holds the live
// call; the current state is implied by which webhook fired.
type State string

const (
	StateInbound             State = "inbound"
	StateMainMenu            State = "main_menu"
	StateDialExtension       State = "dial_extension"
	StateAwaitingDialOutcome State = "awaiting_dial_outcome"
	StateAIReceptionist      State = "ai_receptionist"
	StateAwaitingSpeech      State = "awaiting_speech"
	StateVoicemail           State = "voicemail"
	StateGoodbye             State = "goodbye"
	StateCompleted           State = "completed"
)

type Event string

const (
	EventCallArrived       Event = "call_arrived"
	EventDirectDial        Event = "direct_dial"
	EventDigitOperator     Event = "digit_operator"
	EventDigitRepeat       Event = "digit_repeat"
	EventDigitExtension    Event = "digit_extension"
	EventDigitInvalid      Event = "digit_invalid"
	EventInputTimeout      Event = "input_timeout"
	EventRetriesExhausted  Event = "retries_exhausted"
	EventDialPlaced        Event = "dial_placed"
	EventPromptIssued      Event = "prompt_issued"
	EventDecisionTransfer  Event = "decision_transfer"
	EventDecisionVoicemail Event = "decision_voicemail"
	EventDecisionInfo      Event = "decision_info"
	EventDecisionGoodbye   Event = "decision_goodbye"
	EventDialAnswered      Event = "dial_answered"
	EventDialUnanswered    Event = "dial_unanswered"
	EventRecordingDone     Event = "recording_done"
	EventLookupFailed      Event = "lookup_failed"
)

type transitionKey struct {
	from State
	on   Event
}

var transitions = map[transitionKey]State{
	{StateInbound, EventCallArrived}:  StateMainMenu,
	{StateInbound, EventDirectDial}:   StateDialExtension,
	{StateInbound, EventLookupFailed}: StateVoicemail,

	{StateMainMenu, EventDigitOperator}:    StateAIReceptionist,
	{StateMainMenu, EventDigitRepeat}:      StateMainMenu,
	{StateMainMenu, EventDigitInvalid}:     StateMainMenu,
	{StateMainMenu, EventInputTimeout}:     StateMainMenu,
	{StateMainMenu, EventDigitExtension}:   StateDialExtension,
	{StateMainMenu, EventRetriesExhausted}: StateVoicemail,
	{StateMainMenu, EventLookupFailed}:     StateVoicemail,

	{StateDialExtension, EventDialPlaced}:           StateAwaitingDialOutcome,
	{StateAwaitingDialOutcome, EventDialAnswered}:   StateCompleted,
	{StateAwaitingDialOutcome, EventDialUnanswered}: StateVoicemail,

	{StateAIReceptionist, EventPromptIssued}:      StateAwaitingSpeech,
	{StateAwaitingSpeech, EventDecisionTransfer}:  StateDialExtension,
	{StateAwaitingSpeech, EventDecisionVoicemail}: StateVoicemail,
	{StateAwaitingSpeech, EventDecisionInfo}:      StateAwaitingSpeech,
	{StateAwaitingSpeech, EventDecisionGoodbye}:   StateGoodbye,
	{StateAwaitingSpeech, EventInputTimeout}:      StateAwaitingSpeech,
	{StateAwaitingSpeech, EventRetriesExhausted}:  StateVoicemail,
	{StateAwaitingSpeech, EventLookupFailed}:      StateVoicemail,

	{StateVoicemail, EventRecordingDone}: StateCompleted,
}

// Next looks up the transition table. ok is false for an undefined pair, in
// which case the caller is sent to general voicemail so the call always has
// a next action.
func Next(from State, on Event) (State, bool) {
	to, ok := transitions[transitionKey{from, on}]
	if !ok {
		return StateVoicemail, false
	}
	return to, true
}

func transition(ctx context.Context, callSid string, from State, on Event) State {
	to, ok := Next(from, on)
	if !ok {
		logger.From(ctx).Error("undefined call transition", "call_sid", callSid, "from", from, "event", on)
	}
	metrics.RoutingTransitions.WithLabelValues(string(from), string(on), string(to)).Inc()
	return to
}
