package model

// All lists the tables managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{&User{}, &Session{}, &Message{}, &UsageRecord{}}
}
