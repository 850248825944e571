package metrics

import "time"

// NFSMetrics observes NFSv3/MOUNT request handling: procedure,
// duration, and error-code dimensions.
type NFSMetrics interface {
	RecordRequest(procedure string, duration time.Duration, status string)
	RecordConnectionAccepted()
	RecordConnectionClosed()
	SetActiveConnections(n int32)
}

// StoreMetrics observes Backing Store calls: get/put/hash-field/
// sorted-set/atomic-batch latency and outcome.
type StoreMetrics interface {
	RecordOperation(op string, duration time.Duration, err bool)
}

// SSCMetrics observes the Secret-Sharing Codec's Split/Combine calls,
// including how many of the configured n shares were actually
// available at Combine time.
type SSCMetrics interface {
	RecordSplit(duration time.Duration, plaintextBytes int)
	RecordCombine(duration time.Duration, sharesUsed int, err bool)
}

// AuditMetrics observes TWMA window lifecycle: appends, rollovers,
// and proof generation.
type AuditMetrics interface {
	RecordAppend(duration time.Duration)
	RecordRollover(trigger string)
	RecordProofGenerated(duration time.Duration)
}
