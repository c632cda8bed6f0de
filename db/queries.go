package db

import "fmt"

// Read-side helpers backing the browse and search endpoints. They run
// against the package connection set up by Init.

func ListChannels() ([]Channel, error) {
	var channels []Channel
	err := DB.Order("name asc").Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("ListChannels: %w", err)
	}
	return channels, nil
}

func GetChannel(id string) (*Channel, error) {
	var ch Channel
	if err := DB.Where("id = ?", id).First(&ch).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// ChannelIDs returns the ids of every mirrored channel.
func ChannelIDs() (map[string]bool, error) {
	var ids []string
	if err := DB.Model(&Channel{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("ChannelIDs: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// MessagesForChannel pages through one channel's messages in timestamp
// order. Page numbers start at 1.
func MessagesForChannel(channelID string, page, perPage int) ([]Message, int64, error) {
	if page < 1 {
		page = 1
	}
	var total int64
	if err := DB.Model(&Message{}).Where("channel_id = ?", channelID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("MessagesForChannel %s: %w", channelID, err)
	}
	var msgs []Message
	err := DB.Where("channel_id = ?", channelID).
		Order("ts asc").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("MessagesForChannel %s: %w", channelID, err)
	}
	return msgs, total, nil
}

// SearchMessages matches message text case-insensitively.
func SearchMessages(term string, page, perPage int) ([]Message, int64, error) {
	if page < 1 {
		page = 1
	}
	pattern := "%" + term + "%"
	var total int64
	if err := DB.Model(&Message{}).Where("text ILIKE ?", pattern).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("SearchMessages: %w", err)
	}
	var msgs []Message
	err := DB.Where("text ILIKE ?", pattern).
		Order("ts asc").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("SearchMessages: %w", err)
	}
	return msgs, total, nil
}

// UsersByID preloads the users referenced by a page of messages.
func UsersByID(ids []string) (map[string]User, error) {
	users := make(map[string]User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var rows []User
	if err := DB.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("UsersByID: %w", err)
	}
	for _, u := range rows {
		users[u.ID] = u
	}
	return users, nil
}

// ReactionsForMessages fetches the reaction rows for a page of messages.
func ReactionsForMessages(timestamps []string) (map[string][]Reaction, error) {
	out := make(map[string][]Reaction, len(timestamps))
	if len(timestamps) == 0 {
		return out, nil
	}
	var rows []Reaction
	if err := DB.Where("message_ts IN ?", timestamps).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ReactionsForMessages: %w", err)
	}
	for _, r := range rows {
		out[r.MessageTS] = append(out[r.MessageTS], r)
	}
	return out, nil
}
