package workspace

// File is a Drive file as projected by the files list request.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	WebViewLink string `json:"webViewLink"`
}

// IsFolder reports whether the file is a Drive folder.
func (f File) IsFolder() bool {
	return f.MimeType == "application/vnd.google-apps.folder"
}

// FilePage is one page of files. An empty NextPageToken means the last page.
type FilePage struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// Name is one of a person's names.
type Name struct {
	DisplayName string `json:"displayName"`
	GivenName   string `json:"givenName,omitempty"`
	FamilyName  string `json:"familyName,omitempty"`
}

// EmailAddress is one of a person's email addresses.
type EmailAddress struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// PhoneNumber is one of a person's phone numbers.
type PhoneNumber struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// Person is a contact returned by the People connections request.
type Person struct {
	ResourceName   string         `json:"resourceName"`
	Names          []Name         `json:"names"`
	EmailAddresses []EmailAddress `json:"emailAddresses"`
	PhoneNumbers   []PhoneNumber  `json:"phoneNumbers"`
}

// DisplayName returns the first display name, if any.
func (p Person) DisplayName() string {
	for _, n := range p.Names {
		if n.DisplayName != "" {
			return n.DisplayName
		}
	}
	return ""
}

// PrimaryEmail returns the first email address, if any.
func (p Person) PrimaryEmail() string {
	if len(p.EmailAddresses) == 0 {
		return ""
	}
	return p.EmailAddresses[0].Value
}

// PrimaryPhone returns the first phone number, if any.
func (p Person) PrimaryPhone() string {
	if len(p.PhoneNumbers) == 0 {
		return ""
	}
	return p.PhoneNumbers[0].Value
}

// ContactPage is one page of connections. An empty NextPageToken means the last page.
type ContactPage struct {
	Connections   []Person `json:"connections"`
	NextPageToken string   `json:"nextPageToken"`
}
