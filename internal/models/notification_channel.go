package models

// NotificationChannel is a way of telling the payer about a finalized payment
type NotificationChannel string

const (
	NotificationChannelEmail    NotificationChannel = "email"
	NotificationChannelWhatsapp NotificationChannel = "whatsapp"
	NotificationChannelPush     NotificationChannel = "push"
)

// AllNotificationChannels is the default fan-out of a payment notification
var AllNotificationChannels = []NotificationChannel{
	NotificationChannelEmail,
	NotificationChannelWhatsapp,
	NotificationChannelPush,
}
