package orchestrator

import (
	"context"

	"github.com/fyrsmithlabs/birdsql/internal/agent"
	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

// turnRunner is the transport contract both modes implement: decide the next
// speaker and let it take one turn. The two modes must be behaviorally
// equivalent for the same sequence of agent outputs; they differ only in how
// much conversational context an agent observes.
type turnRunner interface {
	nextSpeaker(s *conversation.State) Decision
	speak(ctx context.Context, s *conversation.State, d Decision) (agent.Output, error)
}

// directRunner invokes each agent synchronously with the minimal relevant
// slice of state. Fully deterministic; the mode exercised by automated
// tests.
type directRunner struct {
	invoker agent.Invoker
	limits  Limits
}

func (r directRunner) nextSpeaker(s *conversation.State) Decision {
	return Select(s, r.limits)
}

func (r directRunner) speak(ctx context.Context, s *conversation.State, d Decision) (agent.Output, error) {
	return r.invoker.Invoke(ctx, d.Next, inputFor(s, d, false))
}

// TurnPolicy decides which participant speaks next in a group chat.
type TurnPolicy func(s *conversation.State) Decision

// GroupChat is the shared-conversation transport: every agent observes the
// full message history when it speaks, and the speaker selector is installed
// as the turn-order policy, preserving the direct mode's decision table.
type GroupChat struct {
	invoker agent.Invoker
	policy  TurnPolicy
}

// NewGroupChat creates the transport with the given turn policy.
func NewGroupChat(invoker agent.Invoker, policy TurnPolicy) *GroupChat {
	return &GroupChat{invoker: invoker, policy: policy}
}

func (g *GroupChat) nextSpeaker(s *conversation.State) Decision {
	return g.policy(s)
}

func (g *GroupChat) speak(ctx context.Context, s *conversation.State, d Decision) (agent.Output, error) {
	return g.invoker.Invoke(ctx, d.Next, inputFor(s, d, true))
}

// inputFor builds the state slice an agent receives. Group-chat mode hands
// every agent the full transcript snapshot; direct mode hands the transcript
// only to the generator, which needs the accumulated repair guidance.
func inputFor(s *conversation.State, d Decision, fullHistory bool) agent.Input {
	in := agent.Input{
		Question:   s.Question,
		DatabaseID: s.DatabaseID,
		Schema:     s.Schema,
		SQL:        s.CurrentSQL,
		Execution:  s.Execution,
	}

	if fullHistory || d.Next == conversation.RoleGenerator {
		in.Transcript = s.Transcript()
	}

	switch d.Next {
	case conversation.RoleInterpreter:
		if s.GenerationFailures > s.Clarifications {
			in.FailureDetail = "the generator produced no parseable SQL"
		}
	case conversation.RoleRepairer:
		in.FailureKind = d.Failure
		in.FailureDetail = s.LastFailure()
	}
	return in
}
