// Package lookup calls the external identification lookup API.
package lookup

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidDocument is returned for identification numbers that are empty
// or contain anything other than ASCII digits.
var ErrInvalidDocument = errors.New("lookup: identification number must be non-empty ASCII digits")

// Form field names expected by the lookup API.
const (
	fieldTransactionID = "transactionID"
	fieldDocument      = "documento"
	fieldDocumentType  = "tipoDocumento"
)

// Request is an immutable lookup query. Build it with NewRequest.
type Request struct {
	document      string
	transactionID string
	documentType  string
}

// IsDigits reports whether s is a non-empty string of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NewRequest validates document and binds it to the fixed transaction id and
// document type taken from configuration. Surrounding whitespace is trimmed.
func NewRequest(document, transactionID, documentType string) (Request, error) {
	document = strings.TrimSpace(document)
	if !IsDigits(document) {
		return Request{}, ErrInvalidDocument
	}
	return Request{
		document:      document,
		transactionID: transactionID,
		documentType:  documentType,
	}, nil
}

// Document returns the identification number.
func (r Request) Document() string { return r.document }

// TransactionID returns the transaction identifier sent with the request.
func (r Request) TransactionID() string { return r.transactionID }

// DocumentType returns the document type code sent with the request.
func (r Request) DocumentType() string { return r.documentType }

// Form encodes the request body.
func (r Request) Form() url.Values {
	return url.Values{
		fieldTransactionID: {r.transactionID},
		fieldDocument:      {r.document},
		fieldDocumentType:  {r.documentType},
	}
}
