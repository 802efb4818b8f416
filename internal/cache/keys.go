package cache

// SubscriptionKey ключ снимка подписки ментора.
func SubscriptionKey(mentorID string) string {
	return "subscription:" + mentorID
}

// MutationLockKey ключ блокировки мутаций подписки ментора.
func MutationLockKey(mentorID string) string {
	return "lock:subscription:" + mentorID
}

// IdempotencyKey ключ сохраненного результата по ключу идемпотентности клиента.
func IdempotencyKey(mentorID, key string) string {
	return "idempotency:" + mentorID + ":" + key
}

// TrialReminderKey отметка об отправленном напоминании о конце пробного периода.
func TrialReminderKey(mentorID string) string {
	return "notified:trial-ending:" + mentorID
}
