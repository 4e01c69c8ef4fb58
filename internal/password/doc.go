// Package password generates random passwords satisfying Active Directory complexity rules.
package password
