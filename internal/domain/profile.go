package domain

// UserProfile is what the identity collaborator knows about a user.
type UserProfile struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
	Online   bool   `json:"online,omitempty"`
}

// Details converts the profile into the denormalized participant record.
func (p UserProfile) Details() ParticipantDetails {
	return ParticipantDetails{Name: p.FullName, Avatar: p.Avatar, Online: p.Online}
}
