package sandbox

import "strings"

// Test card numbers understood by the sandbox gateway.
const (
	CardFrictionless = "4263970000005262"
	CardChallenge    = "4012001038488884"
	CardFailed       = "4012001038443335"
	CardV1Enrolled   = "4012001037141112"
	CardNotEnrolled  = "4917000000000087"
)

type Outcome string

const (
	OutcomeFrictionless Outcome = "frictionless"
	OutcomeChallenge    Outcome = "challenge"
	OutcomeFailed       Outcome = "failed"
	OutcomeV1Only       Outcome = "v1_only"
	OutcomeNotEnrolled  Outcome = "not_enrolled"
)

// OutcomeFor classifies a card number. Unknown numbers authenticate
// frictionlessly.
func OutcomeFor(number string) Outcome {
	switch strings.ReplaceAll(strings.TrimSpace(number), " ", "") {
	case CardChallenge:
		return OutcomeChallenge
	case CardFailed:
		return OutcomeFailed
	case CardV1Enrolled:
		return OutcomeV1Only
	case CardNotEnrolled:
		return OutcomeNotEnrolled
	default:
		return OutcomeFrictionless
	}
}

func (o Outcome) enrolledV2() bool {
	return o != OutcomeV1Only && o != OutcomeNotEnrolled
}

func (o Outcome) enrolledV1() bool {
	return o != OutcomeNotEnrolled
}
