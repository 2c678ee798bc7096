package auth

import "github.com/dmitrijs2005/gophauth/internal/server/models"

// Claim types carried by an access token.
const (
	ClaimName       = "name"
	ClaimSubject    = "sub"
	ClaimEmail      = "email"
	ClaimGivenName  = "given_name"
	ClaimFamilyName = "family_name"
	ClaimGender     = "gender"
	ClaimRole       = "role"
)

// Claim is a single typed assertion about an account.
type Claim struct {
	Type  string
	Value string
}

// ClaimSet is an ordered list of claims. Only ClaimRole may repeat.
type ClaimSet []Claim

// Get returns the first value of the given type, or "".
func (s ClaimSet) Get(typ string) string {
	for _, c := range s {
		if c.Type == typ {
			return c.Value
		}
	}
	return ""
}

// Values returns every value of the given type in order.
func (s ClaimSet) Values(typ string) []string {
	var out []string
	for _, c := range s {
		if c.Type == typ {
			out = append(out, c.Value)
		}
	}
	return out
}

// BuildClaims derives the claim set for user. roles must be read from
// storage by the caller at issuance time.
func BuildClaims(user *models.User, roles []string) ClaimSet {
	set := make(ClaimSet, 0, 6+len(roles))
	set = append(set,
		Claim{Type: ClaimName, Value: user.UserName},
		Claim{Type: ClaimSubject, Value: user.ID},
		Claim{Type: ClaimEmail, Value: user.Email},
		Claim{Type: ClaimGivenName, Value: user.FirstName},
		Claim{Type: ClaimFamilyName, Value: user.LastName},
		Claim{Type: ClaimGender, Value: user.Gender},
	)
	for _, r := range roles {
		set = append(set, Claim{Type: ClaimRole, Value: r})
	}
	return set
}
