package user

type CreateUserRequest struct {
	ClerkID     string `json:"clerkId" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,min=3,max=30"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type AddFriendRequest struct {
	FriendID string `json:"friendId"`
}
