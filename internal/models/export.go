package models

// AccountExportItem is one exported credential pair.
type AccountExportItem struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

// AccountExport is the payload returned by a credential export.
type AccountExport struct {
	Accounts []AccountExportItem `json:"accounts"`
}
