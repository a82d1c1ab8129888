package wire

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Identity is the payload returned by the sign-in, OTP verification and
// refresh methods.
type Identity struct {
	IdentityID    string
	Email         string
	EmailVerified bool
	AccessToken   string
	RefreshToken  string
	// ExpiresAt is when the refresh token stops being accepted.
	ExpiresAt time.Time
}

// Profile is the payload returned by GetProfile when a profile exists.
type Profile struct {
	ID       string
	Name     string
	Email    string
	Role     string
	Active   bool
	PhotoURL string
}

// Struct builds a Struct from string, bool and numeric fields. Values of
// other types are skipped.
func Struct(fields map[string]any) *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		switch value := v.(type) {
		case string:
			s.Fields[k] = structpb.NewStringValue(value)
		case bool:
			s.Fields[k] = structpb.NewBoolValue(value)
		case int:
			s.Fields[k] = structpb.NewNumberValue(float64(value))
		case int64:
			s.Fields[k] = structpb.NewNumberValue(float64(value))
		case float64:
			s.Fields[k] = structpb.NewNumberValue(value)
		}
	}
	return s
}

// String returns the string field key, or "" when absent.
func String(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// Bool returns the bool field key, or false when absent.
func Bool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

// Int64 returns the numeric field key truncated to int64.
func Int64(s *structpb.Struct, key string) int64 {
	return int64(s.GetFields()[key].GetNumberValue())
}

func (i Identity) Struct() *structpb.Struct {
	return Struct(map[string]any{
		FieldIdentityID:    i.IdentityID,
		FieldEmail:         i.Email,
		FieldEmailVerified: i.EmailVerified,
		FieldAccessToken:   i.AccessToken,
		FieldRefreshToken:  i.RefreshToken,
		FieldExpiresAt:     i.ExpiresAt.Unix(),
	})
}

func IdentityFromStruct(s *structpb.Struct) Identity {
	return Identity{
		IdentityID:    String(s, FieldIdentityID),
		Email:         String(s, FieldEmail),
		EmailVerified: Bool(s, FieldEmailVerified),
		AccessToken:   String(s, FieldAccessToken),
		RefreshToken:  String(s, FieldRefreshToken),
		ExpiresAt:     time.Unix(Int64(s, FieldExpiresAt), 0),
	}
}

// Struct encodes p with found=true.
func (p Profile) Struct() *structpb.Struct {
	return Struct(map[string]any{
		FieldFound:     true,
		FieldProfileID: p.ID,
		FieldName:      p.Name,
		FieldEmail:     p.Email,
		FieldRole:      p.Role,
		FieldActive:    p.Active,
		FieldPhotoURL:  p.PhotoURL,
	})
}

// NotFound is the GetProfile response for an identity without a profile.
func NotFound() *structpb.Struct {
	return Struct(map[string]any{FieldFound: false})
}

// ProfileFromStruct decodes a GetProfile response. ok is false when the
// backend reported no profile.
func ProfileFromStruct(s *structpb.Struct) (p Profile, ok bool) {
	if !Bool(s, FieldFound) {
		return Profile{}, false
	}
	return Profile{
		ID:       String(s, FieldProfileID),
		Name:     String(s, FieldName),
		Email:    String(s, FieldEmail),
		Role:     String(s, FieldRole),
		Active:   Bool(s, FieldActive),
		PhotoURL: String(s, FieldPhotoURL),
	}, true
}
