// Package permission holds the in-memory authorization model of the bot.
//
// Every privileged chat command is guarded by a Capability. Operators are
// identified by their chat platform numeric id (Identity) and each identity
// owns a Record with the set of capabilities granted to it.
//
// # Store
//
// Store is the authoritative Identity -> Record mapping. Readers never block:
// they load an immutable snapshot through an atomic pointer. Writers (the
// directory sync job and explicit admin overrides) serialize on a mutex and
// publish a new snapshot, so a ReplaceAll is observed as one instantaneous
// transition.
//
// # Checker
//
// Checker answers "may identity X do Y". ADMIN satisfies every check.
// Unknown identities have no capabilities, so the answer for them is always
// false.
//
// Example usage:
//
//	store := permission.NewStore()
//	checker := permission.NewChecker(store)
//
//	store.Put(permission.Record{
//	    Identity:     111,
//	    Login:        "ivanov",
//	    Capabilities: permission.NewCapabilitySet(permission.UnlockUser),
//	})
//
//	checker.Check(111, permission.UnlockUser) // true
//	checker.Check(111, permission.LAPSRead)   // false
package permission
