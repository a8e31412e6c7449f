package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	DefineTasksOn(GlobalRegistry)
}

// DefineTasksOn registers all available tasks on the given registry
func DefineTasksOn(r *Registry) {
	// Register payment tasks
	r.Register(ExpireStalePaymentsTask.TaskID(), ExpireStalePaymentsTask.HandleExecution)
	r.Register(SendPaymentNotificationTask.TaskID(), SendPaymentNotificationTask.HandleExecution)
}
