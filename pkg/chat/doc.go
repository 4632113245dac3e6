// Package chat answers automotive questions through a language model and
// records what each answer cost.
//
// Service.Reply validates the conversation, builds the system prompt (tailored
// to the vehicle named by an optional "[Vehicle: ...]" prefix), calls the Model
// and returns the extended conversation. The history row and audit record are
// written in the background; Close drains them on shutdown.
package chat
