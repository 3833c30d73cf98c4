package davclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	clowddav "github.com/ShiftyMcCool/clowd-dav-sub000"
	"github.com/ShiftyMcCool/clowd-dav-sub000/codec"
	davxml "github.com/ShiftyMcCool/clowd-dav-sub000/internal/xml"
)

const vcardContentType = "text/vcard; charset=utf-8"

// Discover finds the account's address books with a depth-1 PROPFIND
// against the provider's discovery URL.
func (s *ContactService) Discover(ctx context.Context) ([]clowddav.AddressBook, error) {
	if err := s.core.ready(); err != nil {
		return nil, fmt.Errorf("discover address books: %w", err)
	}

	discoveryURL := s.core.provider.DiscoveryURL(s.core.base, davxml.KindAddressBook, s.core.username)
	body := davxml.BuildPropfind("resourcetype", "displayname", "getctag")

	raw, err := s.core.wrapper.DoPROPFIND(ctx, discoveryURL, 1, body)
	if err != nil {
		return nil, mapError("discover address books", err)
	}

	cols, err := davxml.ParseCollections(raw, discoveryURL, davxml.KindAddressBook, s.core.logger)
	if err != nil {
		return nil, fmt.Errorf("discover address books: %w: %v", clowddav.ErrParse, err)
	}

	books := make([]clowddav.AddressBook, 0, len(cols))
	for _, col := range cols {
		books = append(books, clowddav.AddressBook{
			URL:         col.URL,
			DisplayName: col.DisplayName,
		})
	}
	s.core.logger.Debug("address book discovery complete", "count", len(books))
	return books, nil
}

// ListContacts fetches every card in the address book via an
// addressbook-query REPORT. Cards that fail to decode are skipped.
func (s *ContactService) ListContacts(ctx context.Context, book clowddav.AddressBook) ([]clowddav.Contact, error) {
	if err := s.core.ready(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	query, err := buildAddressbookQuery()
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	raw, err := s.core.wrapper.DoREPORT(ctx, book.URL, 1, query)
	if err != nil {
		return nil, mapError("list contacts", err)
	}

	objects, err := davxml.ParseObjects(raw, s.core.logger)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w: %v", clowddav.ErrParse, err)
	}

	var contacts []clowddav.Contact
	for _, obj := range objects {
		if obj.Data == "" {
			continue
		}
		contact, err := codec.DecodeContact([]byte(obj.Data))
		if err != nil {
			s.core.logger.Warn("skipping undecodable vcard",
				"href", obj.Href, "error", err)
			continue
		}
		contact.ETag = obj.ETag
		contact.AddressBookURL = book.URL
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// CreateContact PUTs a new card at its deterministic URL.
func (s *ContactService) CreateContact(ctx context.Context, book clowddav.AddressBook, contact *clowddav.Contact) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	if contact.UID == "" {
		contact.UID = uuid.New().String()
	}

	data, err := codec.EncodeContact(contact)
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}

	target := objectURL(book.URL, contact.UID, ".vcf")
	etag, err := s.core.wrapper.DoPUT(ctx, target, vcardContentType, "", true, data)
	if err != nil {
		return mapError("create contact", err)
	}

	contact.ETag = etag
	contact.AddressBookURL = book.URL
	return nil
}

// UpdateContact PUTs the card conditionally on its last-known etag. A 412
// surfaces as ErrPreconditionFailed and the contact is left unmodified.
func (s *ContactService) UpdateContact(ctx context.Context, contact *clowddav.Contact) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if contact.ETag == "" {
		return fmt.Errorf("update contact: %w", clowddav.ErrMissingETag)
	}
	if contact.AddressBookURL == "" {
		return fmt.Errorf("update contact: %w: contact has no address book URL", clowddav.ErrNotConfigured)
	}

	data, err := codec.EncodeContact(contact)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}

	target := objectURL(contact.AddressBookURL, contact.UID, ".vcf")
	etag, err := s.core.wrapper.DoPUT(ctx, target, vcardContentType, contact.ETag, false, data)
	if err != nil {
		return mapError("update contact", err)
	}

	if etag != "" {
		contact.ETag = etag
	}
	return nil
}

// DeleteContact removes the card; already-gone items count as success.
func (s *ContactService) DeleteContact(ctx context.Context, contact *clowddav.Contact) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if contact.AddressBookURL == "" {
		return fmt.Errorf("delete contact: %w: contact has no address book URL", clowddav.ErrNotConfigured)
	}

	target := objectURL(contact.AddressBookURL, contact.UID, ".vcf")
	if err := s.core.wrapper.DoDELETE(ctx, target, contact.ETag); err != nil {
		return mapError("delete contact", err)
	}
	return nil
}

// CreateAddressBook makes a new address book via extended MKCOL. The
// collection path is a fresh UUID segment.
func (s *ContactService) CreateAddressBook(ctx context.Context, displayName string) (clowddav.AddressBook, error) {
	if err := s.core.ready(); err != nil {
		return clowddav.AddressBook{}, fmt.Errorf("create address book: %w", err)
	}

	home := s.core.provider.DiscoveryURL(s.core.base, davxml.KindAddressBook, s.core.username)
	target := strings.TrimSuffix(home, "/") + "/" + uuid.New().String() + "/"

	body := davxml.BuildMkcolAddressbook(displayName)
	if err := s.core.wrapper.DoMKCOL(ctx, target, body); err != nil {
		return clowddav.AddressBook{}, mapError("create address book", err)
	}

	return clowddav.AddressBook{URL: target, DisplayName: displayName}, nil
}

// DeleteAddressBook removes an address book collection.
func (s *ContactService) DeleteAddressBook(ctx context.Context, book clowddav.AddressBook) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("delete address book: %w", err)
	}
	if err := s.core.wrapper.DoDELETE(ctx, book.URL, ""); err != nil {
		return mapError("delete address book", err)
	}
	return nil
}

// UpdateAddressBookProperties PROPPATCHes the collection's display name.
func (s *ContactService) UpdateAddressBookProperties(ctx context.Context, book clowddav.AddressBook) error {
	if err := s.core.ready(); err != nil {
		return fmt.Errorf("update address book properties: %w", err)
	}

	body := davxml.BuildProppatch(book.DisplayName, "")
	if err := s.core.wrapper.DoPROPPATCH(ctx, book.URL, body); err != nil {
		return mapError("update address book properties", err)
	}
	return nil
}

// CollectionToken reads the address book's change token.
func (s *ContactService) CollectionToken(ctx context.Context, book clowddav.AddressBook) (string, error) {
	if err := s.core.ready(); err != nil {
		return "", fmt.Errorf("get collection token: %w", err)
	}

	body := davxml.BuildPropfind("getctag", "sync-token")
	raw, err := s.core.wrapper.DoPROPFIND(ctx, book.URL, 0, body)
	if err != nil {
		return "", mapError("get collection token", err)
	}

	token, err := davxml.ParseToken(raw)
	if err != nil {
		return "", fmt.Errorf("get collection token: %w: %v", clowddav.ErrParse, err)
	}
	return token, nil
}
