package index

// Names of the pipeline operations, used in error messages and metrics
// labels.
const (
	OpAcquireLock     = "acquire-lock"
	OpExtendLock      = "extend-lock"
	OpFetchPending    = "fetch-pending-batch"
	OpAggregate       = "aggregate"
	OpUpsertEntry     = "upsert-entry"
	OpSetStatus       = "set-status"
	OpReplaceDocument = "replace-document"
	OpNotify          = "notify"
)
