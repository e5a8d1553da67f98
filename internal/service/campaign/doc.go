// Package campaign implements the marketing fan-out engine: render a
// campaign once, personalize per contact, screen each recipient against the
// suppression registry, and queue one message per subscribed contact on the
// marketing dispatch lane. It also owns the signed unsubscribe flow those
// messages link to.
package campaign
