// Package directory talks to Active Directory over LDAP.
//
// It provides the group membership query used by the permission sync job and the
// account operations behind the chat commands: unlock, disable, create, reset
// password, VPN group membership, LAPS password lookup and listing users by OU.
package directory
