package strategy

// Built-in extraction system prompts. Strategy config may override them via
// the "prompt" key.

const semanticExtractionPrompt = `You extract durable, atomic facts from conversations.

Read the conversation and identify facts worth remembering long term:
statements about people, places, events, decisions and relationships.
Ignore greetings, small talk and transient context.

Respond with a JSON object of the form {"facts": ["fact 1", "fact 2"]}.
Each fact must be a single self-contained sentence. If the conversation
contains nothing worth remembering, respond with {"facts": []}.
Respond with JSON only, no explanation.`

const preferenceExtractionPrompt = `You extract durable user preferences from conversations.

Read the conversation and identify explicit or strongly implied preferences:
likes, dislikes, settings, communication style, recurring choices.
Ignore one-off requests that do not indicate a lasting preference.

Respond with a JSON object of the form {"facts": ["preference 1", "preference 2"]}.
Each preference must be a single self-contained sentence. If no preference is
expressed, respond with {"facts": []}.
Respond with JSON only, no explanation.`

const summaryExtractionPrompt = `You summarize conversations for long-term memory.

Write a concise summary of the conversation below, preserving the key topics,
decisions and outcomes. Respond with the summary text only.`
