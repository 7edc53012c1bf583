// Package backend is the HTTP client for the device backend that owns
// each device's configuration document.
//
// Three endpoints are used:
//
//	GET /dispositivos        list records, used once per device to map serial -> id
//	GET /dispositivos/{id}   fetch the record and its "configuracion" document
//	PUT /dispositivos/{id}   push back a derived power state
//
// Every request has a short fixed timeout and is not retried.
package backend
