package app

var usage = []string{
	"Usage:",
	" -help      to print this usage message.",
	" -install   to install the service.",
	" -uninstall to remove the service.",
	" -console   to run the service as the current account.",
	" -logging enable {filepath} to turn on file logging at the specified path.",
	" -logging disable           to turn off file logging.",
	" -logging state             to return the current file log, if any.",
	" -config set {filepath}     to set the file path of the configuration file.",
	" -config default            to reset the configuration file path to default.",
	" -config state              to return the current configuration file path.",
	"",
}

func (a *App) printUsage() {
	for _, line := range usage {
		a.log.Trace(line)
	}
}
