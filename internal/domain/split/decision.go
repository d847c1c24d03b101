package split

// DecisionKind classifies what a write request should do given the
// previously persisted document.
type DecisionKind int

const (
	// DecisionCreate persists a new (or merged) document; there is no
	// previously deployed address.
	DecisionCreate DecisionKind = iota
	// DecisionUpdate rebinds the document to a newly provided address.
	DecisionUpdate
	// DecisionRedeploy leaves storage untouched and signals the client to
	// deploy a corrected split.
	DecisionRedeploy
	// DecisionIdempotent leaves storage untouched; the existing document
	// already matches.
	DecisionIdempotent
)

// WriteDecision is the outcome of the write-path state machine.
type WriteDecision struct {
	Kind DecisionKind
}

// DecideWrite runs the write-path state machine. prev is the previously
// persisted document (nil when absent), providedAddress the normalized
// caller-supplied split address ("" when absent or invalid).
//
// A previously deployed address is immutable unless the caller provides a
// different one; a misconfigured deployed split is never rewritten in
// place, only signalled.
func DecideWrite(prev *Document, providedAddress string, expectedRecipients int, platformRecipient string, platformBps int) WriteDecision {
	if !prev.HasDeployedAddress() {
		return WriteDecision{Kind: DecisionCreate}
	}

	if providedAddress != "" && providedAddress != NormalizeAddress(prev.SplitAddress) {
		return WriteDecision{Kind: DecisionUpdate}
	}

	prevRecipients := prev.Recipients()
	misconfigured := len(prevRecipients) > 0 && len(prevRecipients) < expectedRecipients
	platformRec := FindRecipient(prevRecipients, platformRecipient)
	platformMismatch := platformRec == nil || ClampBps(float64(platformRec.SharesBps)) != platformBps
	if misconfigured || platformMismatch {
		return WriteDecision{Kind: DecisionRedeploy}
	}

	return WriteDecision{Kind: DecisionIdempotent}
}
