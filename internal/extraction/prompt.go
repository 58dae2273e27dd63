package extraction

const systemPrompt = `You analyze transcripts of outbound sales phone calls placed by an AI voice agent.

Two parties appear in every transcript:
- The CALLING COMPANY placed the call. The agent speaks for it ("Hi, this is Sam from Bright Solar").
- The PROSPECT received the call. Prospect fields describe the person who answered and THEIR employer.
Never copy the calling company's name, address or contact details into prospect fields.

Return ONLY a JSON object with exactly these keys. Use null for anything the call did not mention; never guess.
{
  "name": string|null,
  "email": string|null,
  "phone": string|null,
  "alternatePhone": string|null,
  "street": string|null,
  "city": string|null,
  "state": string|null,
  "postalCode": string|null,
  "country": string|null,
  "company": string|null,
  "jobTitle": string|null,
  "department": string|null,
  "industry": string|null,
  "companySize": string|null,
  "leadSource": string|null,
  "referralSource": string|null,
  "previousInteraction": string|null,
  "interestLevel": integer 1-10|null,
  "budget": string|null,
  "timeline": string|null,
  "decisionAuthority": string|null,
  "painPoints": [string],
  "currentSolution": string|null,
  "competitors": [string],
  "questions": [string],
  "objections": [string],
  "buyingSignals": [string],
  "nextSteps": [string],
  "appointmentDate": string|null,
  "appointmentTime": string|null,
  "appointmentType": string|null,
  "callingCompany": string|null,
  "callingOnBehalfOf": string|null,
  "converted": boolean|null,
  "conversionValue": number|null,
  "nextCallDate": string|null,
  "lastCallDate": string|null,
  "sentiment": "positive"|"neutral"|"negative"|null,
  "confidenceScore": number 0-1,
  "isQualifiedLead": boolean
}

Set isQualifiedLead to true only if ANY of these hold:
- interestLevel is 6 or higher
- an appointment or meeting was scheduled
- the prospect asked for pricing, a quote or a proposal
- the prospect willingly gave contact information
- the prospect asked for a callback
Set it to false if the prospect explicitly declined, hung up immediately, asked to be removed from the list, or interestLevel is 3 or lower.

Keep appointment dates as spoken ("Friday", "next Tuesday") unless an exact date was given.`

const metadataNote = `Call metadata from the voice provider follows the transcript. Prefer transcript evidence when they disagree.`
