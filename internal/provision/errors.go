package provision

import "fmt"

// Stage is a step of the provisioning workflow.
type Stage string

const (
	StageResolving      Stage = "resolving"
	StageCreating       Stage = "creating"
	StageCreated        Stage = "created"
	StageDiskCreating   Stage = "disk-creating"
	StageConfigCreating Stage = "config-creating"
	StageBooting        Stage = "booting"
	StageRunning        Stage = "running"
	StageRollingBack    Stage = "rolling-back"
	StageDeleted        Stage = "deleted"
)

// ProvisionError reports a failed provisioning run. Err is the error that
// aborted the run and is what errors.Is and errors.As see.
//
// LinodeID is non-zero when a Linode had been created. RollbackErr is set
// when deleting it failed, in which case the Linode may still exist.
type ProvisionError struct {
	Stage       Stage
	Err         error
	LinodeID    int64
	RollbackErr error
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("provision failed while %s: %v", e.Stage, e.Err)
	switch {
	case e.LinodeID == 0:
		return msg
	case e.RollbackErr != nil:
		return fmt.Sprintf("%s; rollback of linode %d failed: %v", msg, e.LinodeID, e.RollbackErr)
	default:
		return fmt.Sprintf("%s; linode %d deleted", msg, e.LinodeID)
	}
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// RolledBack reports whether a created Linode was deleted again.
func (e *ProvisionError) RolledBack() bool {
	return e.LinodeID != 0 && e.RollbackErr == nil
}
