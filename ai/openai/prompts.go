package openai

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "methods": {"$ref": "#/definitions/items"},
    "datasets": {"$ref": "#/definitions/items"},
    "baselines": {"$ref": "#/definitions/items"},
    "metrics": {"$ref": "#/definitions/items"},
    "results": {"$ref": "#/definitions/items"},
    "contributions": {"$ref": "#/definitions/items"},
    "limitations": {"$ref": "#/definitions/items"}
  },
  "required": ["methods", "datasets", "baselines", "metrics", "results", "contributions", "limitations"],
  "additionalProperties": false,
  "definitions": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "detail": {"type": "string"}
        },
        "required": ["name", "detail"],
        "additionalProperties": false
      }
    }
  }
}`

const extractionSystemPrompt = `You are reading a section of an academic research paper. Extract the structured knowledge it contains and return it as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

` + extractionResponseSchema + `

Rules:
- "methods": techniques, algorithms, architectures, or approaches the paper uses or proposes.
- "datasets": named datasets or corpora the paper trains or evaluates on.
- "baselines": prior systems or models the paper compares against.
- "metrics": evaluation measures the paper reports (accuracy, BLEU, F1, perplexity, and so on).
- "results": concrete quantitative or qualitative findings, stated briefly.
- "contributions": the claims of novelty or contribution the paper makes.
- "limitations": weaknesses, caveats, or failure modes the paper acknowledges.
- "name" is a short identifier (a few words). "detail" is one sentence describing it in context.
- Include only items explicitly present in the text. Do not hallucinate.
- Use an empty array for any category the text does not mention.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "We fine-tune BERT-large on SQuAD and achieve 91.2 F1, outperforming the ELMo baseline."
Output:
{
  "methods": [{"name":"BERT-large fine-tuning","detail":"The paper fine-tunes a BERT-large model for question answering."}],
  "datasets": [{"name":"SQuAD","detail":"The model is trained and evaluated on the SQuAD dataset."}],
  "baselines": [{"name":"ELMo","detail":"An ELMo based system is used as the comparison baseline."}],
  "metrics": [{"name":"F1","detail":"Performance is reported as F1 score."}],
  "results": [{"name":"91.2 F1 on SQuAD","detail":"The fine-tuned model reaches 91.2 F1, above the baseline."}],
  "contributions": [],
  "limitations": []
}`
