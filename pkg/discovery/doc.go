// Package discovery announces and finds mutation bridges over mDNS/DNS-SD.
//
// A shell running the WebSocket bridge advertises one _observe._tcp
// service. Web views and other tools browse for it instead of being
// configured with an address.
//
// # Instance Name
//
// observe-<first 8 hex digits of the observation ID>
//
// # TXT Records
//
//   - path: WebSocket path of the bridge (required)
//   - id: full observation ID (required)
//   - fmt: comma separated frame formats, "cbor,json" if absent
//   - name: user-friendly document name (optional)
package discovery
