package transit

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/korean"

	"github.com/kjstillabower/infoboard/internal/client"
)

// item is one upstream <item> element as lower-cased child name to trimmed
// text. Every field is optional; missing and empty are the same.
type item map[string]string

func (it item) get(name string) string {
	return it[name]
}

func (it item) route() string {
	if r := it.get(fieldRouteNo); r != "" {
		return r
	}
	return it.get(fieldRouteID)
}

func (it item) message() string {
	if m := it.get(fieldMessage); m != "" {
		return m
	}
	return it.get(fieldMessageV2)
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlItem struct {
	Fields []xmlField `xml:",any"`
}

func (x xmlItem) toItem() item {
	it := make(item, len(x.Fields))
	for _, f := range x.Fields {
		name := strings.ToLower(f.XMLName.Local)
		if _, seen := it[name]; seen {
			continue
		}
		it[name] = strings.TrimSpace(f.Value)
	}
	return it
}

// headerFields are the status elements reported by the portal, either in the
// normal <header> or in the gateway's OpenAPI_ServiceResponse error envelope.
var headerFields = map[string]bool{
	"resultcode":       true,
	"resultmsg":        true,
	"returnreasoncode": true,
	"returnauthmsg":    true,
}

type document struct {
	items  []item
	header map[string]string
}

// parseDocument collects every <item> element at any depth, so the same code
// reads list and single-item responses.
func parseDocument(body []byte) (document, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader

	doc := document{header: make(map[string]string)}
	sawRoot := false
	current := ""
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return document{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			if strings.EqualFold(t.Name.Local, "item") {
				var raw xmlItem
				if err := dec.DecodeElement(&raw, &t); err != nil {
					return document{}, err
				}
				doc.items = append(doc.items, raw.toItem())
				continue
			}
			current = strings.ToLower(t.Name.Local)
		case xml.CharData:
			if headerFields[current] {
				doc.header[current] = strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			current = ""
		}
	}
	if !sawRoot {
		return document{}, errors.New("no root element")
	}
	return doc, nil
}

// err reports a failure the portal signalled inside a 200 response.
func (d document) err() error {
	if code := d.header["returnreasoncode"]; code != "" && code != "00" {
		msg := d.header["returnauthmsg"]
		switch code {
		case "30", "31", "32":
			// key not registered, key expired, caller IP not registered
			return fmt.Errorf("transit: %w: %s (%s)", client.ErrInvalidCredential, msg, code)
		}
		return fmt.Errorf("transit: %w: %s (%s)", client.ErrUpstreamUnavailable, msg, code)
	}
	switch code := d.header["resultcode"]; code {
	case "", "00", "0", "03":
		// 03 is NODATA_ERROR: a stop with nothing scheduled.
		return nil
	default:
		return fmt.Errorf("transit: %w: %s (%s)", client.ErrUpstreamUnavailable, d.header["resultmsg"], code)
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "euc-kr", "cp949", "ks_c_5601-1987":
		return korean.EUCKR.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}
