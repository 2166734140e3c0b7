package proto

import "encoding/json"

// StatusJSON mirrors the shape spec.md §6 requires for the StatusResponse
// payload. It is built through encoding/json rather than string
// concatenation (spec.md §9 Open Question 3), so a MOTD containing a quote
// cannot corrupt the document.
type StatusJSON struct {
	Version     StatusVersion     `json:"version"`
	Players     StatusPlayers     `json:"players"`
	Description StatusDescription `json:"description"`
	Favicon     string            `json:"favicon"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type StatusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type StatusDescription struct {
	Text string `json:"text"`
}

// BuildStatusJSON renders the status payload. versionName, maxPlayers,
// onlinePlayers and motd come from server configuration.
func BuildStatusJSON(versionName string, maxPlayers, onlinePlayers int, motd string) (string, error) {
	doc := StatusJSON{
		Version: StatusVersion{Name: versionName, Protocol: ProtocolVersion},
		Players: StatusPlayers{Max: maxPlayers, Online: onlinePlayers},
		Description: StatusDescription{
			Text: motd,
		},
		Favicon: "",
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
