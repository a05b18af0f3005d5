package service

import (
	"time"

	"github.com/google/uuid"
)

type AttemptOutcome int

// The zero value is OutcomeFailed so an uninitialized attempt never
// reads as a success.
const (
	OutcomeFailed AttemptOutcome = iota
	OutcomeSuccess
	OutcomeTwoFactorRequired
)

// AuthAttempt is the result of a first-factor login. It is built only
// through the constructors below: a failed attempt carries nothing, a
// successful one carries the session grant, and a two-factor attempt
// carries a challenge reference and explicitly no session.
type AuthAttempt struct {
	outcome            AttemptOutcome
	grant              *SessionGrant
	challengeID        uuid.UUID
	challengeExpiresAt time.Time
}

func AttemptFailed() AuthAttempt {
	return AuthAttempt{outcome: OutcomeFailed}
}

func AttemptSucceeded(grant *SessionGrant) AuthAttempt {
	return AuthAttempt{outcome: OutcomeSuccess, grant: grant}
}

func AttemptRequiresTwoFactor(challengeID uuid.UUID, expiresAt time.Time) AuthAttempt {
	return AuthAttempt{
		outcome:            OutcomeTwoFactorRequired,
		challengeID:        challengeID,
		challengeExpiresAt: expiresAt,
	}
}

func (a AuthAttempt) Outcome() AttemptOutcome { return a.outcome }

func (a AuthAttempt) Failed() bool { return a.outcome == OutcomeFailed }

func (a AuthAttempt) Succeeded() bool { return a.outcome == OutcomeSuccess }

func (a AuthAttempt) RequiresTwoFactor() bool { return a.outcome == OutcomeTwoFactorRequired }

// Grant returns the session grant of a successful attempt, nil otherwise.
func (a AuthAttempt) Grant() *SessionGrant {
	if a.outcome != OutcomeSuccess {
		return nil
	}
	return a.grant
}

// ChallengeID returns the pending challenge reference of a two-factor
// attempt, uuid.Nil otherwise.
func (a AuthAttempt) ChallengeID() uuid.UUID {
	if a.outcome != OutcomeTwoFactorRequired {
		return uuid.Nil
	}
	return a.challengeID
}

func (a AuthAttempt) ChallengeExpiresAt() time.Time {
	if a.outcome != OutcomeTwoFactorRequired {
		return time.Time{}
	}
	return a.challengeExpiresAt
}
