// Package account reads grower accounts: contact details for alert mail
// and the active flag that gates the device endpoints.
//
// Sign-up and password handling live in a separate service that shares
// the accounts table; the bridge only creates accounts when seeding a
// demo installation.
package account
