package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// TwiML is a minimal voice markup response builder for the provider webhook
// boundary. It intentionally avoids any provider SDK dependency.
//
// Only the primitives we need: dial a number, dial a named client, reject.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlDial struct {
	XMLName xml.Name     `xml:"Dial"`
	Number  string       `xml:"Number,omitempty"`
	Client  *twimlClient `xml:"Client,omitempty"`
}

type twimlClient struct {
	Name string `xml:",chardata"`
}

// RenderDial produces the markup that connects an inbound call to destination.
// The destination must already have passed ValidDestination.
func RenderDial(destination string) (string, error) {
	if !ValidDestination(destination) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}

	d := twimlDial{}
	if IsClientEndpoint(destination) {
		d.Client = &twimlClient{Name: ClientName(destination)}
	} else {
		d.Number = destination
	}
	return renderResponse(twimlResponse{Verbs: []any{d}})
}

// RenderReject produces the markup that declines an inbound call.
func RenderReject() (string, error) {
	return renderResponse(twimlResponse{Verbs: []any{twimlReject{Reason: "busy"}}})
}

func renderResponse(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
