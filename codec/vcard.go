package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-vcard"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
)

// EncodeContact emits a vCard 4.0 with FN, structured N (family;given),
// repeated EMAIL/TEL fields, ORG and PHOTO. When FirstName or LastName are
// set, FN is recomputed from them so the two never diverge.
func EncodeContact(contact *clowddav.Contact) ([]byte, error) {
	if contact.UID == "" {
		return nil, fmt.Errorf("%w: contact has no UID", clowddav.ErrCodec)
	}

	fn := formattedName(contact)
	if fn == "" {
		return nil, fmt.Errorf("%w: contact %q has no name", clowddav.ErrCodec, contact.UID)
	}

	card := make(vcard.Card)
	card.SetValue(vcard.FieldUID, contact.UID)
	card.SetValue(vcard.FieldFormattedName, fn)
	if contact.FirstName != "" || contact.LastName != "" {
		card.AddName(&vcard.Name{
			FamilyName: contact.LastName,
			GivenName:  contact.FirstName,
		})
	}
	for _, email := range contact.Emails {
		card.AddValue(vcard.FieldEmail, email)
	}
	for _, tel := range contact.Phones {
		card.AddValue(vcard.FieldTelephone, tel)
	}
	if contact.Org != "" {
		card.SetValue(vcard.FieldOrganization, contact.Org)
	}
	if contact.Photo != "" {
		card.Add(vcard.FieldPhoto, photoField(contact.Photo))
	}

	vcard.ToV4(card)

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, fmt.Errorf("%w: %v", clowddav.ErrCodec, err)
	}
	return buf.Bytes(), nil
}

// photoField encodes a photo either inline (data URL) or by reference
// (http URL). Both are URI values in vCard 4.
func photoField(photo string) *vcard.Field {
	return &vcard.Field{
		Value:  photo,
		Params: vcard.Params{vcard.ParamValue: {"uri"}},
	}
}

// DecodeContact parses a single vCard. When no structured N is present the
// flat FN is split: first token becomes the first name, the remainder the
// last name. Photos are normalized to data URLs when the card inlined raw
// base64 bytes; http references pass through untouched.
func DecodeContact(data []byte) (clowddav.Contact, error) {
	card, err := vcard.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return clowddav.Contact{}, fmt.Errorf("%w: %v", clowddav.ErrCodec, err)
	}

	contact := clowddav.Contact{
		UID:           card.Value(vcard.FieldUID),
		FormattedName: card.Value(vcard.FieldFormattedName),
		Org:           card.Value(vcard.FieldOrganization),
		Emails:        card.Values(vcard.FieldEmail),
		Phones:        card.Values(vcard.FieldTelephone),
	}

	if name := card.Name(); name != nil {
		contact.FirstName = name.GivenName
		contact.LastName = name.FamilyName
	} else if contact.FormattedName != "" {
		contact.FirstName, contact.LastName = splitFlatName(contact.FormattedName)
	}

	if contact.FormattedName == "" {
		contact.FormattedName = formattedName(&contact)
	}
	if contact.FormattedName == "" {
		return clowddav.Contact{}, fmt.Errorf("%w: card has no name", clowddav.ErrCodec)
	}

	if photo := card.Get(vcard.FieldPhoto); photo != nil {
		contact.Photo = normalizePhoto(photo)
	}

	return contact, nil
}

func formattedName(contact *clowddav.Contact) string {
	if contact.FirstName != "" || contact.LastName != "" {
		return strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	}
	return strings.TrimSpace(contact.FormattedName)
}

func splitFlatName(fn string) (first, last string) {
	parts := strings.Fields(fn)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// normalizePhoto turns an inline base64 photo into a data URL. Data URLs
// and http references are already in their canonical form.
func normalizePhoto(field *vcard.Field) string {
	value := strings.TrimSpace(field.Value)
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return value
	}

	// vCard 3 inline photos carry raw base64 with a TYPE parameter.
	mediaType := "image/jpeg"
	if t := field.Params.Get(vcard.ParamType); t != "" && !strings.EqualFold(t, "uri") {
		t = strings.ToLower(t)
		if strings.Contains(t, "/") {
			mediaType = t
		} else {
			mediaType = "image/" + t
		}
	}
	return "data:" + mediaType + ";base64," + value
}
