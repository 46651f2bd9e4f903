package dto

// IssueTokenRequest represents the request to exchange the console key for an access token
type IssueTokenRequest struct {
	Operator   string `json:"operator" validate:"required,min=2,max=64"`
	ConsoleKey string `json:"console_key" validate:"required"`
}

// IssueTokenResponse carries the issued access token
type IssueTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}
