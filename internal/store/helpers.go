package store

import (
	"database/sql"
	"fmt"

	"github.com/jokkolabs/jokko/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanConversationMessage scans a ConversationMessage from sql.Rows.
func scanConversationMessage(rows *sql.Rows) (models.ConversationMessage, error) {
	var m models.ConversationMessage
	var phone, webUser, sessionID, providerID, deliveryStatus sql.NullString
	var responseTime sql.NullFloat64
	err := rows.Scan(
		&m.ID, &phone, &webUser, &sessionID, &m.Source, &m.Content, &m.Sender, &m.Intent,
		&responseTime, &providerID, &deliveryStatus, &m.CreatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan conversation message failed: %w", err)
	}
	m.PhoneNumber = phone.String
	m.WebUserID = webUser.String
	m.SessionID = sessionID.String
	m.ProviderMessageID = providerID.String
	m.DeliveryStatus = deliveryStatus.String
	if responseTime.Valid {
		m.ResponseTimeSec = &responseTime.Float64
	}
	return m, nil
}
