package events

import "fmt"

// Well-known topic suffixes emitted by controllers, fanned out per kind.
const (
	SuffixCreated         = "created"
	SuffixUpdated         = "updated"
	SuffixDeleted         = "deleted"
	SuffixReconciled      = "reconciled"
	SuffixReconcileFailed = "reconcile.failed"
	SuffixPhaseChanged    = "phase.changed"
)

// KindTopic builds the per-kind event topic "<kind>.<suffix>".
func KindTopic(kind, suffix string) string {
	return fmt.Sprintf("%s.%s", kind, suffix)
}

// Workflow execution topics.
const (
	TopicWorkflowStarted      = "workflow.started"
	TopicWorkflowCompleted    = "workflow.completed"
	TopicWorkflowFailed       = "workflow.failed"
	TopicWorkflowStepStarted  = "workflow.step.started"
	TopicWorkflowStepComplete = "workflow.step.completed"
	TopicWorkflowStepFailed   = "workflow.step.failed"
)

// CRD registry topics.
const (
	TopicCRDRegistered = "crd.registered"
	TopicCRDRemoved    = "crd.removed"
)

// MastraPod hot-reload topics.
const (
	TopicPodReloaded = "pod.reloaded"
)

// Plugin system topics.
const (
	TopicPluginRegistered  = "plugin.registered"
	TopicPluginUninstalled = "plugin.uninstalled"
	TopicPluginInitFailed  = "plugin.initFailed"
)

// Scheduler topics.
const (
	TopicTaskSubmitted    = "scheduler.taskSubmitted"
	TopicTaskStarted      = "scheduler.taskStarted"
	TopicTaskCompleted    = "scheduler.taskCompleted"
	TopicTaskFailed       = "scheduler.taskFailed"
	TopicSchedulerMetrics = "scheduler.metricsUpdated"
)

// StatusTransitionEvent is the payload published on "<kind>.phase.changed"
// whenever a resource's phase changes.
type StatusTransitionEvent struct {
	Key      string
	Previous string
	Current  string
}
