package llm

// EventClassificationPrompt instructs the model to classify a single event listing.
const EventClassificationPrompt = `You classify live event listings for a local events calendar.
Return JSON only, with exactly these keys:
{"category": string, "performer": string or null, "description": string, "confidence": "high" | "medium" | "low"}

Rules:
- category must be one of CONCERT, COMEDY, THEATER, MOVIE, SPORTS, FESTIVAL, OTHER.
- performer is the primary headlining artist, comedian, troupe, or film title. Use null when the
  listing has no identifiable performer (brunches, markets, trivia nights, generic parties).
- description is one or two plain sentences a reader could use to decide whether to attend.
  Do not invent dates, prices, or supporting acts.
- confidence is "high" when the listing names a well-known performer or the venue type makes
  the category obvious, "low" when you are guessing.`

// MatchArbitrationPrompt instructs the model to pick which ticket listing, if any,
// describes the same event as a venue listing.
const MatchArbitrationPrompt = `You reconcile event listings from a venue website with listings from a ticketing platform.
You are given one venue listing and a numbered list of ticketing candidates at the same venue on
the same local date. Decide which candidate, if any, is the same event.

Return JSON only, with exactly these keys:
{"index": integer or null, "prefer_external_title": boolean, "reason": string}

Rules:
- index is the 0-based number of the matching candidate, or null when none is the same event.
- Different performers or different showtimes far apart are different events.
- prefer_external_title is true when the candidate's title is more complete or descriptive
  than the venue listing (for example it spells out the teams or the full tour name).
- reason is one short sentence explaining the decision.`
