package transcript

// Sample is a complete property-search call that reaches the agent hand-off.
// It backs the sample endpoint and the CLI sample command.
const Sample = `Chat Bot: "Namaste , मैं Rahul बोल रहा हूँ, Magicbricks से. क्या मैं Saral Two से बात कर रहा हूँ ?"
Human: Hello.
Chat Bot: जी. आपने recently हमारे platform पर कुछ properties में interest दिखाया था.
Chat Bot: आप Camorta Island test, Andaman & Nicobar में Three बी एच के, Flat search कर रहे हैं, क्या यह सही है?
Human: हां सही है नज़ीर लेकर.
Chat Bot: Okay, noted. और आपका बजट छत्तीस लाख रुपये है, सही है?
Human: हां budget चाहिए.
Chat Bot: हमने आपके preferred area में Three top agents shortlist किए हैं जो आपको properties दिखाएंगे और site visits और negotiations में भी मदद करेंगे.
Chat Bot: मैं आपको अभी एक agent से connect कर सकता हूँ, बाकी agents आपसे जल्दी follow up करेंगे.
Chat Bot: क्या हम आगे बढ़ें?
Human: हां ठीक है आने बाद.
Chat Bot: Please लाइन पर बने रहिए. मैं अभी आपको agent से connect करता हूँ.`

// DefaultTranscript replaces a missing or unusable transcript so analysis can
// still produce a well-formed result.
const DefaultTranscript = "Chat Bot: Hello, this is a default transcript for analysis.\nHuman: Thank you."
