// Package webhook accepts bookings pushed by the booking service.
//
// The booking service owns booking creation and worker ranking. When a
// booking is ready it POSTs a signed booking.created event carrying the
// record and its ranked candidates; this package stores the record if it is
// new and starts dispatch for it.
//
// # Security Model
//
//   - HMAC-SHA256 over the raw body with a pre-shared secret, compared with
//     crypto/subtle
//   - Body size limit enforced before verification
//   - Signature failures always answer a generic 403
//   - Request logging never includes the body
//
// # Request Flow
//
//  1. Body read up to max_body_size (413 beyond it)
//  2. Signature header verified (403 on mismatch)
//  3. Event decoded and checked (400 when malformed)
//  4. Record created unless it already exists (409 if the id belongs to another customer)
//  5. Dispatch started; a redelivered event for a booking already in dispatch
//     is acknowledged again
//  6. 202 Accepted with booking_id
package webhook
