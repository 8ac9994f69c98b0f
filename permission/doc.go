// Package permission holds the static role-to-resource policy and the
// authorization decision built on it.
//
// # Table policy
//
// [TablePolicy] assigns every resource a bit in a fixed-width mask (64 or
// 128 bits, top bit reserved as the root "*" grant) and flattens role
// inheritance into one mask per role at construction time. A decision is
// then a map lookup and a bit test.
//
// [CasbinPolicy] evaluates the same [Rules] with casbin's RBAC model.
//
// # Decisions
//
//   - Public resources are allowed for everyone.
//   - Anonymous callers on anything else are sent to the login path.
//   - Authenticated resources are allowed for any signed-in caller.
//   - Authenticated callers without a granting role are sent to the
//     forbidden redirect if configured, otherwise to the login path.
//   - Unknown resources and unknown roles deny.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goGate, session, or credentials.
//   - Change after construction.
package permission
