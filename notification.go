package vterm

// DesktopNotification processes a parsed OSC 99 desktop notification request.
// Query payloads (PayloadType == "?") get their provider response, if any,
// written back through the response provider.
func (t *Terminal) DesktopNotification(payload *NotificationPayload) {
	if t.middleware != nil && t.middleware.DesktopNotification != nil {
		t.middleware.DesktopNotification(payload, t.desktopNotificationInternal)
		return
	}
	t.desktopNotificationInternal(payload)
}

func (t *Terminal) desktopNotificationInternal(payload *NotificationPayload) {
	t.mu.Lock()
	provider := t.notificationProvider
	t.mu.Unlock()

	if provider == nil {
		return
	}

	response := provider.Notify(payload)
	if response != "" {
		t.writeResponseString(response)
	}
}
